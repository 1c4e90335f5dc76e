package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/store"
	"github.com/mescon/timr/internal/timer"
	"github.com/mescon/timr/internal/validate"
)

// timerResponse is the JSON view of a stored timer.
type timerResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        timer.Status `json:"status"`
	FormattedTime string       `json:"formatted_time"`
	Raw           format.Raw   `json:"raw"`
	CurrentTime   int          `json:"current_time"`
	StartTime     int          `json:"start_time"`
	PercentDone   *int         `json:"percent_done,omitempty"`
	Countdown     bool         `json:"countdown"`
	FormatOutput  string       `json:"format_output"`
	CreatedAt     time.Time    `json:"created_at"`
}

func newTimerResponse(e *store.Entry) timerResponse {
	p := e.Timer.Snapshot()
	opts := e.Timer.Options()
	return timerResponse{
		ID:            e.ID,
		Name:          e.Name,
		Status:        p.Status,
		FormattedTime: p.FormattedTime,
		Raw:           p.Raw,
		CurrentTime:   p.CurrentTime,
		StartTime:     p.StartTime,
		PercentDone:   p.PercentDone,
		Countdown:     opts.Countdown,
		FormatOutput:  opts.FormatOutput,
		CreatedAt:     e.CreatedAt,
	}
}

func newTimerResponses(entries []*store.Entry) []timerResponse {
	out := make([]timerResponse, len(entries))
	for i, e := range entries {
		out[i] = newTimerResponse(e)
	}
	return out
}

type createTimerRequest struct {
	Name      string         `json:"name"`
	Start     any            `json:"start"`
	Options   map[string]any `json:"options"`
	Autostart bool           `json:"autostart"`
	DelayMs   int            `json:"delay_ms"`
}

type startTimerRequest struct {
	DelayMs int `json:"delay_ms"`
}

type setStartTimeRequest struct {
	Start  any `json:"start"`
	Backup any `json:"backup"`
}

// bindOptionalJSON binds the request body into obj; an empty body leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func delayFromMillis(ms int) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("%w: delay_ms must not be negative, got %d", timer.ErrType, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// lookupTimer resolves the :id parameter, responding 404 when it is unknown.
func (s *RESTServer) lookupTimer(c *gin.Context) (*store.Entry, bool) {
	e, ok := s.store.Get(c.Param("id"))
	if !ok {
		respondNotFound(c, ErrMsgTimerNotFound)
	}
	return e, ok
}

func (s *RESTServer) listTimers(c *gin.Context) {
	p := ParsePagination(c, TimerPaginationConfig())

	entries := s.store.GetAll()
	sortEntries(entries, p.SortBy, p.SortOrder == "desc")
	start, end := p.Window(len(entries))

	c.JSON(http.StatusOK, gin.H{
		"data":       newTimerResponses(entries[start:end]),
		"pagination": NewPaginationResponse(p, len(entries)),
	})
}

// sortEntries orders entries by one of the TimerPaginationConfig columns. The sort is
// stable, so ties keep insertion order.
func sortEntries(entries []*store.Entry, by string, desc bool) {
	less := func(a, b *store.Entry) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch by {
	case "name":
		less = func(a, b *store.Entry) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "status":
		less = func(a, b *store.Entry) bool { return a.Timer.Status() < b.Timer.Status() }
	case "current_time":
		less = func(a, b *store.Entry) bool { return a.Timer.CurrentTime() < b.Timer.CurrentTime() }
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func (s *RESTServer) listTimersByStatus(c *gin.Context) {
	st, ok := timer.ParseStatus(c.Param("status"))
	if !ok {
		respondBadRequest(c, fmt.Errorf("%s %q", ErrMsgUnknownStatus, c.Param("status")), true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newTimerResponses(s.store.GetStatus(st))})
}

func (s *RESTServer) getTimer(c *gin.Context) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTimerResponse(e))
}

func (s *RESTServer) createTimer(c *gin.Context) {
	var req createTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	if validate.NotExists(req.Start) {
		respondBadRequest(c, errors.New(ErrMsgStartRequired), true)
		return
	}
	delay, err := delayFromMillis(req.DelayMs)
	if err != nil {
		respondTimerError(c, err)
		return
	}

	partial, err := format.Decode(req.Options)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	if partial.FormatOutput == nil && s.defaultFormat != "" {
		partial.FormatOutput = format.Ptr(s.defaultFormat)
	}

	e, err := s.store.Create(store.CreateRequest{
		Name:      req.Name,
		Start:     req.Start,
		Options:   partial,
		Autostart: req.Autostart,
		Delay:     delay,
	}, s.timerOpts...)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTimerResponse(e))
}

func (s *RESTServer) startTimer(c *gin.Context) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	var req startTimerRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	delay, err := delayFromMillis(req.DelayMs)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	if err := e.Timer.StartAfter(delay); err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimerResponse(e))
}

func (s *RESTServer) pauseTimer(c *gin.Context) {
	s.control(c, (*timer.Timer).Pause)
}

func (s *RESTServer) stopTimer(c *gin.Context) {
	s.control(c, (*timer.Timer).Stop)
}

// control applies fn to the timer named by :id and responds with its new state.
func (s *RESTServer) control(c *gin.Context, fn func(*timer.Timer) error) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	if err := fn(e.Timer); err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimerResponse(e))
}

func (s *RESTServer) setTimerStartTime(c *gin.Context) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	var req setStartTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	if validate.NotExists(req.Start) {
		respondBadRequest(c, errors.New(ErrMsgStartRequired), true)
		return
	}

	var err error
	if validate.Exists(req.Backup) {
		err = e.Timer.SetStartTimeWithBackup(req.Start, req.Backup)
	} else {
		err = e.Timer.SetStartTime(req.Start)
	}
	if err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimerResponse(e))
}

func (s *RESTServer) changeTimerOptions(c *gin.Context) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	partial, err := format.Decode(raw)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	if err := e.Timer.ChangeOptions(partial); err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimerResponse(e))
}

func (s *RESTServer) destroyTimer(c *gin.Context) {
	e, ok := s.lookupTimer(c)
	if !ok {
		return
	}
	e.Timer.Destroy()
	c.Status(http.StatusNoContent)
}

func (s *RESTServer) startAllTimers(c *gin.Context) {
	s.batch(c, s.store.StartAll)
}

func (s *RESTServer) pauseAllTimers(c *gin.Context) {
	s.batch(c, s.store.PauseAll)
}

func (s *RESTServer) stopAllTimers(c *gin.Context) {
	s.batch(c, s.store.StopAll)
}

// batch runs a store-wide operation. Timers it could not handle are reported together
// with the state of every timer.
func (s *RESTServer) batch(c *gin.Context, fn func() error) {
	err := fn()
	timers := newTimerResponses(s.store.GetAll())
	if err != nil {
		status := timerErrorStatus(err)
		if status == http.StatusInternalServerError {
			respondWithError(c, status, ErrMsgInternalError, err)
			return
		}
		c.JSON(status, gin.H{"error": err.Error(), "data": timers})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": timers})
}

func (s *RESTServer) destroyAllTimers(c *gin.Context) {
	n := s.store.Len()
	s.store.DestroyAll()
	c.JSON(http.StatusOK, gin.H{"destroyed": n})
}
