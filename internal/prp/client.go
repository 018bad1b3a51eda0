package prp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"inventory/internal/logs"
)

// Record — сотрудник в выгрузке PRP. Raw — исходный JSON записи.
type Record struct {
	PRPID          string          `json:"prp_id"`
	EmployeeNumber string          `json:"employee_number"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Department     string          `json:"department"`
	Designation    string          `json:"designation"`
	Active         *bool           `json:"is_active,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Record(p)
	r.PRPID = strings.TrimSpace(r.PRPID)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// IsActiveEmployee — отсутствие флага в выгрузке означает действующего сотрудника.
func (r *Record) IsActiveEmployee() bool { return r.Active == nil || *r.Active }

type page struct {
	Results []Record `json:"results"`
	Next    string   `json:"next"`
}

type ClientOptions struct {
	BaseURL  string
	Token    string
	PageSize int
	Timeout  time.Duration
	// MaxPages ограничивает обход на случай зацикленного next.
	MaxPages int
}

// Client — клиент API PRP: GET /api/employees?page=N&page_size=M.
type Client struct {
	http     *resty.Client
	pageSize int
	maxPages int
}

func NewClient(o ClientOptions) *Client {
	if o.PageSize <= 0 {
		o.PageSize = 200
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 1000
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(o.BaseURL, "/")).
		SetTimeout(o.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json")
	if o.Token != "" {
		c.SetAuthToken(o.Token)
	}
	return &Client{http: c, pageSize: o.PageSize, maxPages: o.MaxPages}
}

// FetchAll обходит все страницы. Результат — полная выгрузка: кто в неё
// не попал, больше не числится в PRP.
func (c *Client) FetchAll(ctx context.Context) ([]Record, error) {
	var out []Record
	for n := 1; n <= c.maxPages; n++ {
		var p page
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("page", fmt.Sprint(n)).
			SetQueryParam("page_size", fmt.Sprint(c.pageSize)).
			SetResult(&p).
			Get("/api/employees")
		if err != nil {
			return nil, fmt.Errorf("prp: fetch page %d: %w", n, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("prp: fetch page %d: status %d", n, resp.StatusCode())
		}
		out = append(out, p.Results...)
		logs.Logger.WithFields(logrus.Fields{
			"page":    n,
			"records": len(p.Results),
		}).Debug("prp page fetched")
		if p.Next == "" || len(p.Results) == 0 {
			return out, nil
		}
	}
	return nil, fmt.Errorf("prp: more than %d pages, feed considered incomplete", c.maxPages)
}
