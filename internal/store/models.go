package store

import (
	"encoding/json"
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusUnknown    TaskStatus = "unknown"
)

// Terminal reports whether no further callback may change a task in this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NormalizeStatus lower-cases a provider status; empty becomes unknown.
func NormalizeStatus(s string) TaskStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusUnknown
	}
	return TaskStatus(s)
}

// VideoTask is one asynchronous video generation job, correlated by ID between the
// submission and the provider webhook.
type VideoTask struct {
	ID             string          `json:"taskId"`
	Status         TaskStatus      `json:"status"`
	Result         json.RawMessage `json:"result"`
	ProviderTaskID string          `json:"providerTaskId,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Template struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Type     []string `json:"type"`
	Prompt   string   `json:"prompt"`
	ImageURL string   `json:"imageUrl"`
}

// HasType reports whether the template is listed under the given category.
func (t Template) HasType(typ string) bool {
	for _, v := range t.Type {
		if v == typ {
			return true
		}
	}
	return false
}

type User struct {
	ID               string    `json:"id"`
	ShopName         string    `json:"shopName"`
	LogoURL          string    `json:"logoUrl"`
	IsWebsiteCreated bool      `json:"isWebsiteCreated"`
	WebsiteURL       string    `json:"websiteUrl"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
