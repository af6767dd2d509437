package domain

// ListJobsParams contains parameters for listing jobs with filtering
// and pagination, used by operational/debugging queries (the due-scan
// and cleanup queries are separate, narrower Store methods per §4.1).
type ListJobsParams struct {
	Status   *Status
	Kind     *Kind
	ParentID *string

	Limit  int
	Offset int
}

// PagedJobs is the result of applying ListJobsParams.
type PagedJobs struct {
	Items      []Job
	TotalCount int
	HasMore    bool
}
