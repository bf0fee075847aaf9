package api

// DataResponse is the standard success envelope.
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// OK wraps a payload in the success envelope.
func OK(data interface{}) *DataResponse {
	return &DataResponse{Success: true, Data: data}
}

// AnalysisResponse pairs an analysis result with its guardian report
// and the audit record written for the run.
type AnalysisResponse struct {
	Result   interface{} `json:"result"`
	Guardian interface{} `json:"guardian,omitempty"`
	AuditID  string      `json:"audit_id,omitempty"`
}
