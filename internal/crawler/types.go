// Package crawler defines the crawl pipeline types shared across subsystems.
package crawler

import (
	"time"
)

// BaseURL is the root of the national standards platform.
const BaseURL = "https://std.samr.gov.cn"

// SearchURL is the keyword search endpoint; the keyword is passed as ?q=.
const SearchURL = BaseURL + "/search/std"

// TaskStatus represents the lifecycle state of a crawl task.
type TaskStatus string

// Task status values held in the task store.
const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskMode distinguishes single-keyword from batch submissions.
type TaskMode string

// Task modes.
const (
	TaskModeSingle TaskMode = "single"
	TaskModeBatch  TaskMode = "batch"
)

// Record is one extracted standard-document entry. The guaranteed fields are
// std_code, std_name, title, url and status; detail enrichment and batch
// tagging add further keys, and different records may carry different keys.
type Record map[string]string

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Well-known record field names.
const (
	FieldStdCode        = "std_code"
	FieldStdName        = "std_name"
	FieldTitle          = "title"
	FieldURL            = "url"
	FieldStatus         = "status"
	FieldSearchKeyword  = "search_keyword"
	FieldCNTitle        = "cn_title"
	FieldENTitle        = "en_title"
	FieldDraftingUnit   = "drafting_unit"
	FieldDrafters       = "drafters"
	FieldPDFPageURL     = "pdf_page_url"
	FieldPDFDownloadURL = "pdf_download_url"
	FieldHasPDFDownload = "has_pdf_download"
	FieldHasPreview     = "has_online_preview"
	FieldHCNO           = "hcno"
)

// Filter values understood by the platform's search page. FilterAll skips
// the click entirely.
const (
	FilterAll = "全部"

	StdTypeNationalPlan = "国家标准计划"
	StdTypeNational     = "国家标准"
	StdTypeIndustry     = "行业标准"
	StdTypeLocal        = "地方标准"

	StdStatusCurrent   = "现行"
	StdStatusWithdrawn = "废止"
)

// SearchFilter narrows a search by standard type and status before
// pagination begins. Empty values mean unfiltered.
type SearchFilter struct {
	StdType   string `json:"std_type"`
	StdStatus string `json:"std_status"`
}

// TypeActive reports whether the type filter needs to be applied.
func (f SearchFilter) TypeActive() bool {
	return f.StdType != "" && f.StdType != FilterAll
}

// StatusActive reports whether the status filter needs to be applied.
func (f SearchFilter) StatusActive() bool {
	return f.StdStatus != "" && f.StdStatus != FilterAll
}

// TaskParams captures everything a submission requests.
type TaskParams struct {
	Keywords    []string     `json:"keywords"`
	MaxPages    int          `json:"max_pages"`
	Filter      SearchFilter `json:"filter"`
	WithDetails bool         `json:"with_details"`
	Mode        TaskMode     `json:"mode"`
}

// Task is one user-initiated crawl request and its accumulated outcome.
// Records are populated only on a fully successful run.
type Task struct {
	ID        string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message"`
	Params    TaskParams `json:"params"`
	Records   []Record   `json:"-"`
	Total     int        `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	File      string     `json:"file,omitempty"`
}

// ResultPage is a bounded slice of a task's records plus pagination metadata.
type ResultPage struct {
	TaskID     string     `json:"task_id"`
	Status     TaskStatus `json:"status"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
	Results    []Record   `json:"results"`
}

// QueueItem wraps a submitted task ready to run.
type QueueItem struct {
	TaskID    string
	Params    TaskParams
	Submitted int64
}
