package generate

// maxReportErrors caps the sample errors kept in a report.
const maxReportErrors = 5

// Report summarizes the provider calls of one generation run.
type Report struct {
	Calls      int      `json:"calls" yaml:"calls"`
	Succeeded  int      `json:"succeeded" yaml:"succeeded"`
	Failed     int      `json:"failed" yaml:"failed"`
	Fallback   bool     `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Questions  int      `json:"questions" yaml:"questions"`
	Rejected   int      `json:"rejected" yaml:"rejected"`
	Duplicates int      `json:"duplicates" yaml:"duplicates"`
	Errors     []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) addError(err error) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

func (r *Report) callFailed(err error) {
	r.Failed++
	r.addError(err)
}

// Merge adds the counts of other into r.
func (r *Report) Merge(other Report) {
	r.Calls += other.Calls
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Fallback = r.Fallback || other.Fallback
	r.Questions += other.Questions
	r.Rejected += other.Rejected
	r.Duplicates += other.Duplicates
	for _, e := range other.Errors {
		if len(r.Errors) >= maxReportErrors {
			break
		}
		r.Errors = append(r.Errors, e)
	}
}
