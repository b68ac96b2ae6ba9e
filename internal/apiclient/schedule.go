package apiclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tajious/medsync/internal/models"
)

const schedulePath = "/api/doctor/schedule"

type Slot struct {
	SlotDatetime string             `json:"slot_datetime"`
	IsAvailable  models.LooseString `json:"is_available"`
}

// Blocked reports an explicit false availability; the API sends either a
// boolean or the string "false".
func (s Slot) Blocked() bool {
	return s.IsAvailable.String() == "false"
}

type ScheduleResponse struct {
	Schedule   []Slot `json:"schedule"`
	DoctorName string `json:"doctor_name"`
}

// ScheduleAction is one of block_slot, unblock_slot (with Slot as
// "YYYY-MM-DD HH:MM:SS"), block_day, unblock_day (with Day as YYYY-MM-DD),
// block_all or unblock_all.
type ScheduleAction struct {
	Action string `json:"action"`
	Slot   string `json:"slot,omitempty"`
	Day    string `json:"day,omitempty"`
}

func (c *Client) Schedule(ctx context.Context, bearer string) (*ScheduleResponse, error) {
	var out ScheduleResponse
	err := c.withScheduleControl(ctx, func(ctx context.Context) error {
		raw, err := c.do(ctx, "schedule_get", http.MethodGet, schedulePath, bearer, nil, "Failed to fetch schedule")
		if err != nil {
			return err
		}
		return decodeInto(raw, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSchedule(ctx context.Context, bearer string, action ScheduleAction) error {
	return c.withScheduleControl(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, "schedule_post", http.MethodPost, schedulePath, bearer, action, "Failed to perform action")
		return err
	})
}

// withScheduleControl bounds each attempt by the schedule timeout and
// retries transport failures only; API answers are returned as they are.
func (c *Client) withScheduleControl(ctx context.Context, call func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.scheduleRetries, retry.NewConstant(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.scheduleTimeout)
		defer cancel()

		err := call(attemptCtx)
		if errors.Is(err, ErrUnreachable) {
			return retry.RetryableError(err)
		}
		return err
	})
}
