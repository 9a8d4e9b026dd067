package domain

import "time"

// Task statuses. A task is created pending, picked up as running and ends
// completed when it reached its lead target, warning otherwise.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskWarning   = "warning"
)

// ValidTaskStatus reports whether s is one of the task statuses.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskRunning, TaskCompleted, TaskWarning:
		return true
	}
	return false
}

// Task is a queued scrape that repeats until a lead target is met
// (collection: tasks).
type Task struct {
	ID           string     `bson:"_id,omitempty"           json:"id"`
	Keyword      string     `bson:"keyword"                 json:"keyword"`
	Location     string     `bson:"location"                json:"location"`
	Site         string     `bson:"site"                    json:"site"`
	Notes        string     `bson:"notes,omitempty"         json:"notes,omitempty"`
	Status       string     `bson:"status"                  json:"status"`
	LeadsCount   int        `bson:"leads_count"             json:"leads_count"`
	Cycles       int        `bson:"cycles"                  json:"cycles"`
	ReviewReason string     `bson:"review_reason,omitempty" json:"review_reason,omitempty"`
	Exported     bool       `bson:"exported"                json:"exported"`
	CreatedAt    time.Time  `bson:"created_at"              json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"              json:"updated_at"`
	FinishedAt   *time.Time `bson:"finished_at,omitempty"   json:"finished_at,omitempty"`
}

// TaskUpdate is a partial update of a task. Nil fields are left untouched.
type TaskUpdate struct {
	Status       *string
	LeadsCount   *int
	Cycles       *int
	ReviewReason *string
	Exported     *bool
	Finished     bool
}

// TaskReport summarizes one processed task.
type TaskReport struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Cycles int    `json:"cycles"`
	Leads  int    `json:"leads"`
	Error  string `json:"error,omitempty"`
}

// DailyCount is the number of new leads per source on one day.
type DailyCount struct {
	Date    string         `json:"date"`
	Sources map[string]int `json:"sources"`
}

// Stats aggregates tasks and leads for a dashboard.
type Stats struct {
	TotalTasks   int          `json:"total_tasks"`
	RunningTasks int          `json:"running_tasks"`
	TotalLeads   int          `json:"total_leads"`
	LeadsToday   int          `json:"leads_today"`
	LeadsWeek    int          `json:"leads_week"`
	LeadsMonth   int          `json:"leads_month"`
	DailyHistory []DailyCount `json:"daily_history"`
}
