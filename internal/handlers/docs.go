package handlers

import (
	"encoding/json"
	"net/http"
)

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

var errorResponses = map[string]interface{}{
	"400": jsonResponse("Malformed request", ref("Error")),
	"422": jsonResponse("Series cannot be analysed (empty, or a non-positive expected value)", ref("Error")),
}

func openAPIDocument() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Energy Insights API",
			"description": "Deviation analytics for metered demand against its historical baseline, and a Spanish question interpreter for outlier searches",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Energy Insights Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/dashboard": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Build a dashboard",
					"description": "Compute metrics, period buckets, distribution, top deviations and status of a series analysis",
					"requestBody": jsonBody(ref("SeriesAnalysis")),
					"responses": map[string]interface{}{
						"200": jsonResponse("Dashboard", ref("DashboardResponse")),
						"400": errorResponses["400"],
						"422": errorResponses["422"],
					},
				},
			},
			"/api/dashboard/{device_id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Analyse a device-day",
					"description": "Fetch the series of one device-day from the analysis backend and build its dashboard",
					"parameters": []map[string]interface{}{
						{"name": "device_id", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
						{"name": "base_year", "in": "query", "required": true, "schema": map[string]string{"type": "integer"}},
						{"name": "target_date", "in": "query", "required": true, "schema": map[string]string{"type": "string", "format": "date"}},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Dashboard with the backend's narrative analysis", ref("DashboardResponse")),
						"400": errorResponses["400"],
						"404": jsonResponse("Unknown device or day", ref("Error")),
						"422": errorResponses["422"],
						"502": jsonResponse("Analysis backend failure", ref("Error")),
					},
				},
			},
			"/api/dashboard/export": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Export a series as CSV",
					"requestBody": jsonBody(ref("SeriesAnalysis")),
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Hora, Demanda Real (kW), Demanda Esperada (kW), Desviación (%)",
							"content": map[string]interface{}{
								"text/csv": map[string]interface{}{"schema": map[string]string{"type": "string"}},
							},
						},
						"400": errorResponses["400"],
						"422": errorResponses["422"],
					},
				},
			},
			"/api/query/extract": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Interpret a question",
					"description": "Return the outlier search extracted from a Spanish question, or unrecognized",
					"requestBody": jsonBody(ref("QueryRequest")),
					"responses": map[string]interface{}{
						"200": jsonResponse("Interpreted intent", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"intent_kind": map[string]interface{}{"type": "string", "enum": []string{"outlier_search", "unrecognized"}},
								"intent":      ref("OutlierSearch"),
							},
						}),
						"400": errorResponses["400"],
					},
				},
			},
			"/api/query": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Ask the assistant",
					"description": "Outlier questions are searched and summarised; anything else is forwarded to the backend assistant",
					"requestBody": jsonBody(ref("QueryRequest")),
					"responses": map[string]interface{}{
						"200": jsonResponse("Answer", ref("Answer")),
						"400": errorResponses["400"],
					},
				},
			},
			"/api/outliers/summary": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Summarise outlier results",
					"requestBody": jsonBody(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"outliers": map[string]interface{}{"type": "array", "items": ref("OutlierResult")},
							"limit":    map[string]interface{}{"type": "integer", "default": 5},
						},
					}),
					"responses": map[string]interface{}{
						"200": jsonResponse("Summary text", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"summary": map[string]string{"type": "string"},
								"count":   map[string]string{"type": "integer"},
							},
						}),
						"400": errorResponses["400"],
					},
				},
			},
			"/api/queries": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List asked questions",
					"description": "Paginated query log, newest first. Available when the database is enabled",
					"parameters": []map[string]interface{}{
						{"name": "intent_kind", "in": "query", "required": false, "schema": map[string]string{"type": "string"}},
						{"name": "failed", "in": "query", "required": false, "schema": map[string]string{"type": "boolean"}},
						{"name": "page", "in": "query", "required": false, "schema": map[string]interface{}{"type": "integer", "default": 1}},
						{"name": "limit", "in": "query", "required": false, "schema": map[string]interface{}{"type": "integer", "default": 50}},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Query log page", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"data":        map[string]interface{}{"type": "array", "items": ref("QueryLogEntry")},
								"total":       map[string]string{"type": "integer"},
								"page":        map[string]string{"type": "integer"},
								"limit":       map[string]string{"type": "integer"},
								"total_pages": map[string]string{"type": "integer"},
							},
						}),
						"503": jsonResponse("Query log disabled", ref("Error")),
					},
				},
			},
			"/api/queries/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get one asked question",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "string", "format": "uuid"}},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Query log entry", ref("QueryLogEntry")),
						"404": jsonResponse("Not found", ref("Error")),
						"503": jsonResponse("Query log disabled", ref("Error")),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its query log store are running",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status":    map[string]string{"type": "string"},
								"query_log": map[string]string{"type": "boolean"},
							},
						}),
						"503": map[string]interface{}{"description": "Query log store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"ChartDataPoint": map[string]interface{}{
					"type":     "object",
					"required": []string{"time_str", "value", "mean"},
					"properties": map[string]interface{}{
						"time_str": map[string]interface{}{"type": "string", "example": "13:45"},
						"value":    map[string]string{"type": "number"},
						"mean":     map[string]string{"type": "number"},
						"std":      map[string]interface{}{"type": "number", "nullable": true},
					},
				},
				"MeterInfo": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"description": map[string]string{"type": "string"},
						"devicetype":  map[string]string{"type": "string"},
						"customerid":  map[string]string{"type": "string"},
						"usergroup":   map[string]string{"type": "string"},
					},
				},
				"SeriesAnalysis": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"device_id":    map[string]string{"type": "string"},
						"day_name":     map[string]string{"type": "string"},
						"medidor_info": ref("MeterInfo"),
						"chart_data":   map[string]interface{}{"type": "array", "items": ref("ChartDataPoint")},
						"analysis": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"estado_general": map[string]interface{}{"type": "string", "enum": []string{"NORMAL", "ALERTA", "CRITICO"}},
								"resumen":        map[string]string{"type": "string"},
								"habitos":        map[string]string{"type": "string"},
								"anomalias":      map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
								"recomendacion":  map[string]string{"type": "string"},
							},
						},
					},
				},
				"DashboardResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"device_id":      map[string]string{"type": "string"},
						"day_name":       map[string]string{"type": "string"},
						"medidor_info":   ref("MeterInfo"),
						"backend_status": map[string]interface{}{"type": "string", "enum": []string{"NORMAL", "ALERTA", "CRITICO", "DESCONOCIDO"}},
						"dashboard": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"metrics":        map[string]string{"type": "object"},
								"period_buckets": map[string]interface{}{"type": "array", "minItems": 4, "maxItems": 4, "items": map[string]string{"type": "object"}},
								"distribution":   map[string]interface{}{"type": "array", "minItems": 6, "maxItems": 6, "items": map[string]string{"type": "object"}},
								"top_deviations": map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
								"status":         map[string]interface{}{"type": "string", "enum": []string{"NORMAL", "ALERTA", "CRITICO"}},
							},
						},
					},
				},
				"QueryRequest": map[string]interface{}{
					"type":     "object",
					"required": []string{"message"},
					"properties": map[string]interface{}{
						"message": map[string]interface{}{
							"type":    "string",
							"example": "Busca medidores con desviaciones mayores al 50% en el año base 2024 entre enero y octubre de 2025",
						},
						"context": map[string]string{"type": "object"},
					},
				},
				"OutlierSearch": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"threshold_pct": map[string]string{"type": "number"},
						"base_year":     map[string]string{"type": "integer"},
						"start_date":    map[string]string{"type": "string"},
						"end_date":      map[string]string{"type": "string"},
					},
				},
				"OutlierResult": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"device_id":     map[string]string{"type": "string"},
						"fecha":         map[string]string{"type": "string", "format": "date"},
						"max_deviation": map[string]string{"type": "number"},
						"chart_data":    map[string]interface{}{"type": "array", "items": ref("ChartDataPoint")},
						"medidor_info":  ref("MeterInfo"),
					},
				},
				"Answer": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"intent_kind": map[string]string{"type": "string"},
						"intent":      map[string]string{"type": "object"},
						"reply":       map[string]string{"type": "string"},
						"outliers":    map[string]interface{}{"type": "array", "items": ref("OutlierResult")},
						"failed":      map[string]string{"type": "boolean"},
					},
				},
				"QueryLogEntry": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":            map[string]string{"type": "string", "format": "uuid"},
						"message":       map[string]string{"type": "string"},
						"intent_kind":   map[string]string{"type": "string"},
						"threshold_pct": map[string]interface{}{"type": "number", "nullable": true},
						"base_year":     map[string]interface{}{"type": "integer", "nullable": true},
						"start_date":    map[string]interface{}{"type": "string", "nullable": true},
						"end_date":      map[string]interface{}{"type": "string", "nullable": true},
						"result_count":  map[string]interface{}{"type": "integer", "nullable": true},
						"failed":        map[string]string{"type": "boolean"},
						"created_at":    map[string]string{"type": "string", "format": "date-time"},
					},
				},
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Energy Insights API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
