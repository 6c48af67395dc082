package model

import "github.com/shopspring/decimal"

type CandidateStatus int

const (
	CandidateReady CandidateStatus = iota
	CandidateDuplicate
	CandidateNotFound
	CandidateLookupFailed
)

func (s CandidateStatus) String() string {
	switch s {
	case CandidateReady:
		return "ready"
	case CandidateDuplicate:
		return "duplicate"
	case CandidateNotFound:
		return "not_found"
	case CandidateLookupFailed:
		return "error"
	}
	return "unknown"
}

type BatchCandidate struct {
	Code     string
	Name     string
	FullName string
	Type     string
	Status   CandidateStatus
	Reason   string
	// operator input for individual mode, raw as typed
	Amount string
	Profit string
}

type BatchMode int

const (
	BatchModeSkip BatchMode = iota
	BatchModeDefault
	BatchModeIndividual
)

func (m BatchMode) String() string {
	switch m {
	case BatchModeSkip:
		return "skip"
	case BatchModeDefault:
		return "default"
	case BatchModeIndividual:
		return "individual"
	}
	return "unknown"
}

func ParseBatchMode(s string) (BatchMode, bool) {
	switch s {
	case "skip":
		return BatchModeSkip, true
	case "default":
		return BatchModeDefault, true
	case "individual":
		return BatchModeIndividual, true
	}
	return 0, false
}

type BatchDefaults struct {
	HoldingAmount decimal.Decimal
	CurrentProfit decimal.Decimal
}

type BatchPreview struct {
	Candidates []BatchCandidate
	Counts     map[CandidateStatus]int
}

func (p BatchPreview) Ready() []BatchCandidate {
	res := make([]BatchCandidate, 0, p.Counts[CandidateReady])
	for _, c := range p.Candidates {
		if c.Status == CandidateReady {
			res = append(res, c)
		}
	}
	return res
}

type BatchResult struct {
	Mode   BatchMode
	Added  int
	Failed int
}

type Progress struct {
	Processed int
	Total     int
	Percent   int
}

type ProgressFunc func(p Progress)
