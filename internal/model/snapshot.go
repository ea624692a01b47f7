package model

// Snapshot is the latest live detection pushed by the backend. A new
// snapshot replaces the previous one; no history is kept.
type Snapshot struct {
	Timestamp string            `json:"timestamp"`
	Results   []DetectionResult `json:"results"`
}

// DetectionResult is one model's verdict on the most recent packet.
type DetectionResult struct {
	Model       string  `json:"model"`
	Status      Verdict `json:"status"`
	StatusLabel string  `json:"status_label"`
	Confidence  float64 `json:"confidence"` // percent
	RawValue    float64 `json:"raw_value"`
}

// Malicious reports whether any model flagged the snapshot.
func (s Snapshot) Malicious() bool {
	for _, r := range s.Results {
		if r.Status == Malicious {
			return true
		}
	}
	return false
}
