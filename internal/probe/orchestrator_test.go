package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"reachcheck/internal/models"
)

// fakeClient scripts per-operation behavior and counts calls.
type fakeClient struct {
	existence     func(ctx context.Context) ([]Existence, error)
	status        func(ctx context.Context) (*StatusInfo, error)
	picture       func(ctx context.Context) ([]byte, error)
	business      func(ctx context.Context) (map[string]any, error)
	presence      func(ctx context.Context) (map[string]any, error)
	statusCalls   atomic.Int32
	pictureCalls  atomic.Int32
	businessCalls atomic.Int32
}

func (f *fakeClient) CheckExistence(ctx context.Context, _ string) ([]Existence, error) {
	if f.existence != nil {
		return f.existence(ctx)
	}
	return []Existence{{Exists: true}}, nil
}

func (f *fakeClient) FetchStatus(ctx context.Context, _ string) (*StatusInfo, error) {
	f.statusCalls.Add(1)
	if f.status != nil {
		return f.status(ctx)
	}
	return &StatusInfo{Text: "Available"}, nil
}

func (f *fakeClient) FetchProfilePicture(ctx context.Context, _, _ string) ([]byte, error) {
	f.pictureCalls.Add(1)
	if f.picture != nil {
		return f.picture(ctx)
	}
	return []byte{1}, nil
}

func (f *fakeClient) FetchBusinessProfile(ctx context.Context, _ string) (map[string]any, error) {
	f.businessCalls.Add(1)
	if f.business != nil {
		return f.business(ctx)
	}
	return nil, nil
}

func (f *fakeClient) SubscribePresence(ctx context.Context, _ string) (map[string]any, error) {
	if f.presence != nil {
		return f.presence(ctx)
	}
	return map[string]any{"subscribed": true}, nil
}

type OrchestratorSuite struct {
	suite.Suite
	ctx context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) newOrchestrator(client Client, cfg Config) *Orchestrator {
	o, err := NewOrchestrator(client, cfg)
	s.Require().NoError(err)
	return o
}

func fastConfig() Config {
	return Config{
		Timeout:        200 * time.Millisecond,
		PresenceMargin: 50 * time.Millisecond,
		RetryBaseDelay: time.Millisecond,
	}
}

func (s *OrchestratorSuite) TestRegistrationPositive() {
	o := s.newOrchestrator(&fakeClient{}, fastConfig())
	res := models.NewValidationResult("15551230001")
	res.AccountID = "15551230001@s.messenger.net"

	s.True(o.CheckRegistration(s.ctx, res))
	s.True(res.Registered)
	s.True(res.Active)
	s.Contains(res.Ban.DetectionMethods, "registration_check")
	s.Empty(res.Diagnostics.ErrorDetails)
}

func (s *OrchestratorSuite) TestRegistrationNotFound() {
	client := &fakeClient{
		existence: func(context.Context) ([]Existence, error) {
			return []Existence{{Exists: false}}, nil
		},
	}
	o := s.newOrchestrator(client, fastConfig())
	res := models.NewValidationResult("15551230000")

	s.False(o.CheckRegistration(s.ctx, res))
	s.False(res.Registered)
	s.Empty(res.Diagnostics.ErrorDetails, "a clean negative answer is not error evidence")
}

func (s *OrchestratorSuite) TestRegistrationFailureRecordsEvidence() {
	client := &fakeClient{
		existence: func(context.Context) ([]Existence, error) {
			return nil, errors.New("500 internal server error")
		},
	}
	o := s.newOrchestrator(client, fastConfig())
	res := models.NewValidationResult("15551230001")

	s.False(o.CheckRegistration(s.ctx, res))
	s.Require().Len(res.Diagnostics.ErrorDetails, 1)
	s.Equal(StageRegistration, res.Diagnostics.ErrorDetails[0].Stage)
	s.Equal("500", res.Diagnostics.ErrorDetails[0].Code)
}

func (s *OrchestratorSuite) TestAllProbesSucceed() {
	setAt := time.Now().Add(-400 * 24 * time.Hour)
	client := &fakeClient{
		status: func(context.Context) (*StatusInfo, error) {
			return &StatusInfo{Text: "Available", SetAt: &setAt}, nil
		},
		business: func(context.Context) (map[string]any, error) {
			return map[string]any{"category": "retail"}, nil
		},
	}
	o := s.newOrchestrator(client, fastConfig())
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(3, res.Diagnostics.ProbesExecuted)
	s.Equal(3, res.Diagnostics.ProbesSuccessful)
	s.True(res.Account.HasStatus)
	s.Equal("Available", res.Account.StatusText)
	s.Equal(models.AgeOld, res.Account.AgeClass)
	s.True(res.Account.HasProfilePicture)
	s.True(res.Account.IsBusinessAccount)
	s.Empty(res.Diagnostics.ErrorDetails)
}

func (s *OrchestratorSuite) TestPresenceProbeEnabled() {
	cfg := fastConfig()
	cfg.Presence = true
	o := s.newOrchestrator(&fakeClient{}, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(4, res.Diagnostics.ProbesExecuted)
	s.True(res.Account.PresenceAvailable)
	s.Contains(res.Ban.DetectionMethods, StagePresence)
}

func (s *OrchestratorSuite) TestProbeOrderFollowsPriority() {
	o := s.newOrchestrator(&fakeClient{}, fastConfig())
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	names := make([]string, 0, len(res.Diagnostics.ProbeResults))
	for _, pr := range res.Diagnostics.ProbeResults {
		names = append(names, pr.Name)
	}
	s.Equal([]string{StageStatus, StageProfilePicture, StageBusinessProfile}, names)
}

func (s *OrchestratorSuite) TestRetryNonFatalThenSucceed() {
	var calls atomic.Int32
	client := &fakeClient{
		status: func(context.Context) (*StatusInfo, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("500 transient backend error")
			}
			return &StatusInfo{Text: "Available"}, nil
		},
	}
	cfg := fastConfig()
	cfg.Retry = true
	cfg.MaxRetries = 2
	o := s.newOrchestrator(client, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(int32(2), calls.Load())
	s.Equal(3, res.Diagnostics.ProbesSuccessful)
	s.Contains(res.Diagnostics.FallbacksUsed, "retry_status_1")
	// The original failure stays recorded even though the retry succeeded.
	s.Require().NotEmpty(res.Diagnostics.ErrorDetails)
	s.Equal(StageStatus, res.Diagnostics.ErrorDetails[0].Stage)
}

func (s *OrchestratorSuite) TestRetryExhaustedRecordsDistinctStage() {
	client := &fakeClient{
		picture: func(context.Context) ([]byte, error) {
			return nil, errors.New("503 service unavailable")
		},
	}
	cfg := fastConfig()
	cfg.Retry = true
	cfg.MaxRetries = 2
	o := s.newOrchestrator(client, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(int32(3), client.pictureCalls.Load(), "original attempt plus two retries")
	s.Equal(2, res.Diagnostics.ProbesSuccessful)

	var stages []string
	for _, d := range res.Diagnostics.ErrorDetails {
		stages = append(stages, d.Stage)
	}
	s.Contains(stages, StageProfilePicture)
	s.Contains(stages, StageProfilePicture+"_retry_exhausted")
}

func (s *OrchestratorSuite) TestFatalFailureNotRetried() {
	client := &fakeClient{
		status: func(context.Context) (*StatusInfo, error) {
			return nil, errors.New("404 account permanently deleted")
		},
	}
	cfg := fastConfig()
	cfg.Retry = true
	cfg.MaxRetries = 3
	o := s.newOrchestrator(client, cfg)
	res := models.NewValidationResult("15551230009")

	o.RunProbes(s.ctx, res)

	s.Equal(int32(1), client.statusCalls.Load(), "fatal errors are never retried")
	s.Empty(res.Diagnostics.FallbacksUsed)
}

func (s *OrchestratorSuite) TestTimeoutMarksProbeTimedOut() {
	client := &fakeClient{
		status: func(ctx context.Context) (*StatusInfo, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return &StatusInfo{Text: "late"}, nil
		},
	}
	cfg := fastConfig()
	cfg.Timeout = 30 * time.Millisecond
	o := s.newOrchestrator(client, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	var statusResult *models.ProbeResult
	for i := range res.Diagnostics.ProbeResults {
		if res.Diagnostics.ProbeResults[i].Name == StageStatus {
			statusResult = &res.Diagnostics.ProbeResults[i]
		}
	}
	s.Require().NotNil(statusResult)
	s.Equal(models.ProbeTimeout, statusResult.Status)
	s.False(res.Account.HasStatus, "a late result is discarded")
}

func (s *OrchestratorSuite) TestSequentialMode() {
	cfg := fastConfig()
	cfg.Parallel = false
	o := s.newOrchestrator(&fakeClient{}, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(3, res.Diagnostics.ProbesExecuted)
	s.Equal(3, res.Diagnostics.ProbesSuccessful)
}

func (s *OrchestratorSuite) TestParallelFailureDoesNotCancelSiblings() {
	client := &fakeClient{
		status: func(context.Context) (*StatusInfo, error) {
			return nil, errors.New("500 broken")
		},
	}
	cfg := fastConfig()
	cfg.Parallel = true
	o := s.newOrchestrator(client, cfg)
	res := models.NewValidationResult("15551230001")

	o.RunProbes(s.ctx, res)

	s.Equal(3, res.Diagnostics.ProbesExecuted)
	s.Equal(2, res.Diagnostics.ProbesSuccessful, "siblings run to completion")
	s.True(res.Account.HasProfilePicture)
}

func TestClassifyAge(t *testing.T) {
	assert.Equal(t, models.AgeNew, classifyAge(time.Now().Add(-5*24*time.Hour)))
	assert.Equal(t, models.AgeMedium, classifyAge(time.Now().Add(-90*24*time.Hour)))
	assert.Equal(t, models.AgeOld, classifyAge(time.Now().Add(-400*24*time.Hour)))
}

func TestClassifyError(t *testing.T) {
	t.Run("permanence keywords are fatal", func(t *testing.T) {
		pe := Classify("status", errors.New("account permanently banned"))
		assert.True(t, pe.Fatal)
		assert.Equal(t, CodeUnknown, pe.Code)
	})

	t.Run("404 is fatal", func(t *testing.T) {
		pe := Classify("status", errors.New("404 no such account"))
		assert.True(t, pe.Fatal)
		assert.Equal(t, "404", pe.Code)
	})

	t.Run("429 is retryable", func(t *testing.T) {
		pe := Classify("status", errors.New("429 too many requests"))
		assert.False(t, pe.Fatal)
		assert.Equal(t, "429", pe.Code)
	})

	t.Run("unmatched errors are unknown and non-fatal", func(t *testing.T) {
		pe := Classify("status", errors.New("connection reset"))
		assert.False(t, pe.Fatal)
		assert.Equal(t, CodeUnknown, pe.Code)
	})
}
