package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/telemetry"
)

// Publisher delivers job results.
type Publisher interface {
	Publish(ctx context.Context, result *Result) error
}

// ProcessorConfig holds configuration for creating a Processor.
type ProcessorConfig struct {
	Service *assessment.Service

	// Holder and ModelPath enable model_reload jobs for the weather slot.
	// Holder may be nil when the model is served remotely.
	Holder    *regression.Holder
	ModelPath string

	// PollutantHolder and PollutantModelPath do the same for the pollutant
	// vector slot.
	PollutantHolder    *regression.Holder
	PollutantModelPath string

	// ModelDir confines reload path overrides. Overrides are rejected when
	// it is empty.
	ModelDir string

	// Registry is reported by health_check jobs (optional).
	Registry *resilience.Registry

	// Publisher receives results (optional).
	Publisher Publisher

	// Concurrency is the number of assessments run in parallel per job.
	// Default: 4
	Concurrency int

	// Timeout bounds each assessment.
	// Default: 30 seconds
	Timeout time.Duration

	Logger zerolog.Logger
}

// Processor runs jobs against the assessment service.
type Processor struct {
	service     *assessment.Service
	slots       map[string]modelSlot
	modelDir    string
	registry    *resilience.Registry
	publisher   Publisher
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger

	stats *Stats
}

// Stats tracks processor activity.
type Stats struct {
	mu sync.RWMutex

	JobsProcessed      int64
	JobsFailed         int64
	AssessmentsOK      int64
	AssessmentsFailed  int64
	ModelReloads       int64
	LastJobAt          time.Time
	LastJobDuration    time.Duration
	TotalBatchDuration time.Duration
}

// NewProcessor creates a job processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Service == nil {
		return nil, errors.New("worker: assessment service is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	slots := map[string]modelSlot{
		ModelWeather:   {holder: cfg.Holder, path: cfg.ModelPath},
		ModelPollutant: {holder: cfg.PollutantHolder, path: cfg.PollutantModelPath},
	}
	return &Processor{
		service:     cfg.Service,
		slots:       slots,
		modelDir:    cfg.ModelDir,
		registry:    cfg.Registry,
		publisher:   cfg.Publisher,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		stats:       &Stats{},
	}, nil
}

// Handle decodes one message, processes it, and publishes the result.
// A nil return means the message should be acknowledged; see Retryable
// for errors.
func (p *Processor) Handle(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	result, err := p.Process(ctx, &msg)
	if err != nil {
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, result); err != nil {
			return fmt.Errorf("publishing result: %w", err)
		}
	}
	return nil
}

// Process runs a decoded job.
func (p *Processor) Process(ctx context.Context, msg *Message) (*Result, error) {
	start := time.Now()
	result := &Result{JobID: msg.JobID, JobType: msg.JobType}

	var err error
	switch msg.JobType {
	case JobAssessment:
		err = p.runAssessments(ctx, msg.Assessments, result)
	case JobModelReload:
		err = p.reloadModel(msg.Model, msg.ModelPath, result)
	case JobHealthCheck:
		err = p.checkHealth(ctx, result)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(start)
	p.updateStats(result, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stats returns a snapshot of processor statistics.
func (p *Processor) Stats() Stats {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()
	return Stats{
		JobsProcessed:      p.stats.JobsProcessed,
		JobsFailed:         p.stats.JobsFailed,
		AssessmentsOK:      p.stats.AssessmentsOK,
		AssessmentsFailed:  p.stats.AssessmentsFailed,
		ModelReloads:       p.stats.ModelReloads,
		LastJobAt:          p.stats.LastJobAt,
		LastJobDuration:    p.stats.LastJobDuration,
		TotalBatchDuration: p.stats.TotalBatchDuration,
	}
}

type indexedResult struct {
	index  int
	result AssessmentResult
}

// runAssessments fans the batch out over a fixed pool of goroutines. Item
// failures are reported in the result and do not fail the job.
func (p *Processor) runAssessments(ctx context.Context, reqs []AssessmentRequest, result *Result) error {
	if len(reqs) == 0 {
		return fmt.Errorf("%w: assessment job has no assessments", ErrMalformedMessage)
	}

	p.logger.Info().
		Int("assessments", len(reqs)).
		Int("concurrency", p.concurrency).
		Msg("starting assessment batch")

	work := make(chan int, len(reqs))
	results := make(chan indexedResult, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					return
				}
				results <- indexedResult{index: idx, result: p.assess(ctx, reqs[idx])}
			}
		}()
	}

	for i := range reqs {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	result.Assessments = make([]AssessmentResult, len(reqs))
	received := 0
	for r := range results {
		result.Assessments[r.index] = r.result
		received++
		if r.result.Error == "" {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if received < len(reqs) {
		return fmt.Errorf("assessment batch interrupted after %d of %d: %w", received, len(reqs), ctx.Err())
	}

	p.logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("assessment batch completed")

	return nil
}

func (p *Processor) assess(ctx context.Context, req AssessmentRequest) AssessmentResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := AssessmentResult{ID: req.ID, Kind: req.Kind}

	switch req.Kind {
	case KindPollutants:
		if req.Pollutants == nil {
			out.Error = "pollutants reading is required"
			return out
		}
		res, err := p.service.AssessPollutants(ctx, *req.Pollutants, req.Method, req.Preset, req.Profile)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.AQI, out.Advisory, out.Warnings = res.AQI, &res.Advisory, res.Warnings

	case KindWeather:
		if req.Weather == nil {
			out.Error = "weather reading is required"
			return out
		}
		res, err := p.service.AssessWeatherAs(ctx, telemetry.KindWorkerWeather, *req.Weather, req.Preset, req.Profile)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.AQI, out.Advisory = res.AQI, &res.Advisory

	case KindLiveWeather:
		if req.Location == nil {
			out.Error = "location is required"
			return out
		}
		res, err := p.service.AssessLiveWeather(ctx, req.Location.Lat, req.Location.Lon, req.Preset, req.Profile)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.AQI, out.Advisory = res.AQI, &res.Advisory

	case KindLivePollutants:
		if req.Location == nil {
			out.Error = "location is required"
			return out
		}
		res, err := p.service.AssessLivePollutants(ctx, req.Location.Lat, req.Location.Lon, req.Preset, req.Profile)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.AQI, out.Advisory, out.Warnings = res.AQI, &res.Advisory, res.Warnings
		for _, m := range res.Missing {
			out.Missing = append(out.Missing, string(m))
		}

	default:
		out.Error = fmt.Sprintf("unknown assessment kind %q", req.Kind)
	}

	if out.Error != "" {
		p.logger.Debug().Str("id", req.ID).Str("error", out.Error).Msg("assessment failed")
	}
	return out
}

// modelSlot is a reloadable model and its configured artifact.
type modelSlot struct {
	holder *regression.Holder
	path   string
}

func (p *Processor) reloadModel(name, override string, result *Result) error {
	if name == "" {
		name = ModelWeather
	}
	slot, ok := p.slots[name]
	if !ok {
		return fmt.Errorf("%w: unknown model slot %q", ErrMalformedMessage, name)
	}
	if slot.holder == nil {
		return fmt.Errorf("%w: no local %s model holder", ErrReloadDisabled, name)
	}

	path := slot.path
	if override != "" {
		resolved, err := p.confine(override)
		if err != nil {
			return err
		}
		path = resolved
	}
	if path == "" {
		return fmt.Errorf("%w: no %s model path configured", ErrReloadDisabled, name)
	}

	m, err := slot.holder.Reload(path)
	if err != nil {
		// A bad artifact stays bad on redelivery.
		if errors.Is(err, aqi.ErrInvalidInput) || errors.Is(err, regression.ErrUnsupportedKind) {
			return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		return fmt.Errorf("reloading %s model from %s: %w", name, path, err)
	}

	info := slot.holder.Info()
	result.Model = &info

	p.logger.Info().
		Str("slot", name).
		Str("path", path).
		Str("model", m.Name()).
		Str("version", m.Version()).
		Msg("model reloaded")
	return nil
}

// confine resolves a reload path override and rejects it unless it lies
// inside the model directory.
func (p *Processor) confine(override string) (string, error) {
	if p.modelDir == "" {
		return "", fmt.Errorf("%w: model path overrides are disabled", ErrMalformedMessage)
	}
	dir, err := filepath.Abs(p.modelDir)
	if err != nil {
		return "", fmt.Errorf("resolving model directory: %w", err)
	}

	path := override
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: model path %q is outside %s", ErrMalformedMessage, override, p.modelDir)
	}
	return path, nil
}

func (p *Processor) checkHealth(ctx context.Context, result *Result) error {
	report := &HealthReport{
		ModelAvailable:          p.service.ModelAvailable(ctx),
		PollutantModelAvailable: p.service.PollutantModelAvailable(ctx),
	}
	if p.registry != nil {
		report.Upstreams = make(map[string]string)
		for _, u := range p.registry.Snapshot() {
			report.Upstreams[u.Name] = u.Status()
		}
	}
	result.Health = report

	if !report.ModelAvailable {
		return fmt.Errorf("%w: model estimator unavailable", ErrUnhealthy)
	}
	for name, status := range report.Upstreams {
		if status == resilience.StatusUnhealthy {
			return fmt.Errorf("%w: upstream %s is %s", ErrUnhealthy, name, status)
		}
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

func (p *Processor) updateStats(result *Result, err error) {
	p.stats.mu.Lock()
	defer p.stats.mu.Unlock()

	p.stats.JobsProcessed++
	if err != nil {
		p.stats.JobsFailed++
	}
	p.stats.AssessmentsOK += int64(result.Succeeded)
	p.stats.AssessmentsFailed += int64(result.Failed)
	if result.JobType == JobModelReload && err == nil {
		p.stats.ModelReloads++
	}
	p.stats.LastJobAt = result.CompletedAt
	p.stats.LastJobDuration = result.Duration
	if result.JobType == JobAssessment {
		p.stats.TotalBatchDuration += result.Duration
	}
}
