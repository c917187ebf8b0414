package models

// Wire shapes exchanged with the external analysis backend.

// ChartDataPoint is one slot of the backend's chart_data array
type ChartDataPoint struct {
	TimeStr string   `json:"time_str"`
	Value   float64  `json:"value"`
	Mean    float64  `json:"mean"`
	Std     *float64 `json:"std,omitempty"`
}

// ToPoint converts the wire point into a TimeSeriesPoint
func (c ChartDataPoint) ToPoint() (TimeSeriesPoint, error) {
	t, err := ParseTimeOfDay(c.TimeStr)
	if err != nil {
		return TimeSeriesPoint{}, err
	}

	return TimeSeriesPoint{
		Time:     t,
		Actual:   c.Value,
		Expected: c.Mean,
		StdDev:   c.Std,
	}, nil
}

// ChartToSeries converts a chart_data array into a validated Series
func ChartToSeries(deviceID, day string, chart []ChartDataPoint) (Series, error) {
	points := make([]TimeSeriesPoint, 0, len(chart))
	for _, c := range chart {
		p, err := c.ToPoint()
		if err != nil {
			return Series{}, err
		}
		points = append(points, p)
	}
	return NewSeries(deviceID, day, points)
}

// MeterInfo describes a meter (medidor) as reported by the backend
type MeterInfo struct {
	Description string `json:"description"`
	DeviceType  string `json:"devicetype"`
	CustomerID  string `json:"customerid"`
	UserGroup   string `json:"usergroup"`
}

// Anomaly is one period flagged by the backend's narrative analysis
type Anomaly struct {
	Period      string `json:"periodo"`
	Description string `json:"descripcion"`
}

// AIAnalysis is the narrative part of a series analysis
type AIAnalysis struct {
	OverallStatus  string    `json:"estado_general"`
	Summary        string    `json:"resumen"`
	Habits         string    `json:"habitos"`
	Anomalies      []Anomaly `json:"anomalias"`
	Recommendation string    `json:"recomendacion"`
}

// SeriesAnalysis is the backend response for one device-day
type SeriesAnalysis struct {
	DeviceID  string           `json:"device_id"`
	MeterInfo MeterInfo        `json:"medidor_info"`
	DayName   string           `json:"day_name"`
	ChartData []ChartDataPoint `json:"chart_data"`
	Analysis  AIAnalysis       `json:"analysis"`
}

// ToSeries converts the chart data of the analysis into a Series
func (a *SeriesAnalysis) ToSeries() (Series, error) {
	return ChartToSeries(a.DeviceID, a.DayName, a.ChartData)
}

// Status returns the normalised overall status of the analysis
func (a *SeriesAnalysis) Status() OverallStatus {
	return ParseOverallStatus(a.Analysis.OverallStatus)
}

// AnalyzeRequest asks the backend to analyse one device-day against a base year
type AnalyzeRequest struct {
	DeviceID   string `json:"device_id"`
	BaseYear   int    `json:"base_year"`
	TargetDate string `json:"target_date"`
}

// OutlierRequest asks the backend for devices deviating from their baseline
type OutlierRequest struct {
	BaseYear  int     `json:"base_year"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Threshold float64 `json:"threshold"`
}

// OutlierResult is one device-day whose deviation exceeded the threshold
type OutlierResult struct {
	DeviceID     string           `json:"device_id"`
	Date         string           `json:"fecha"`
	MaxDeviation float64          `json:"max_deviation"`
	ChartData    []ChartDataPoint `json:"chart_data"`
	MeterInfo    MeterInfo        `json:"medidor_info"`
}

// OutlierResponse is the backend answer to an OutlierRequest
type OutlierResponse struct {
	Outliers []OutlierResult `json:"outliers"`
}

// ChatRequest is forwarded to the backend's general purpose assistant
type ChatRequest struct {
	Message string      `json:"message"`
	Context interface{} `json:"context,omitempty"`
}

// ChatResponse is the assistant's reply
type ChatResponse struct {
	Response string `json:"response"`
}
