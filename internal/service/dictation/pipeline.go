package dictation

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/observability/metrics"
	"clinical-dictation-service/internal/service/classifier"
	"clinical-dictation-service/internal/service/medication"
	"clinical-dictation-service/internal/service/segment"
	"clinical-dictation-service/internal/service/triage"
)

// Stage is a set of pipeline outputs.
type Stage uint8

const (
	StageMedications Stage = 1 << iota
	StageMedicalData
	StageUrgency

	StageAll = StageMedications | StageMedicalData | StageUrgency
)

// Has reports whether every stage in x is set.
func (s Stage) Has(x Stage) bool {
	return s&x == x
}

// Result holds the outputs of one pipeline pass. Fields for stages that
// were not requested are left nil.
type Result struct {
	Utterances  []string
	Medications []models.StructuredMedication
	MedicalData *models.StructuredMedicalData
	Urgency     *models.UrgencyAssessment
}

// Pipeline turns finalized transcript text into structured records.
// Stateless and safe for concurrent use.
type Pipeline struct {
	segmenter  *segment.Segmenter
	extractor  *medication.Extractor
	classifier *classifier.Classifier
	metrics    *metrics.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSegmenter replaces the default command phrases.
func WithSegmenter(s *segment.Segmenter) PipelineOption {
	return func(p *Pipeline) { p.segmenter = s }
}

// WithExtractor replaces the default medication extractor.
func WithExtractor(e *medication.Extractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

// WithPipelineMetrics overrides the metrics sink.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline builds a pipeline with default phrases and rules.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		segmenter:  segment.NewSegmenter(segment.DefaultPhrases()),
		extractor:  medication.NewExtractor(),
		classifier: classifier.New(),
		metrics:    metrics.DefaultMetrics,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Segmenter returns the segmenter used for command phrases.
func (p *Pipeline) Segmenter() *segment.Segmenter {
	return p.segmenter
}

// Process runs the requested stages over transcript. Medication extraction
// and classification run concurrently; urgency is scored from the
// classification. The only error is cancellation of ctx.
func (p *Pipeline) Process(ctx context.Context, stages Stage, transcript string) (Result, error) {
	var (
		res        Result
		utterances []string
		meds       []models.StructuredMedication
		data       models.StructuredMedicalData
	)

	g, gctx := errgroup.WithContext(ctx)

	if stages.Has(StageMedications) {
		g.Go(func() error {
			utterances = p.segmenter.Segment(transcript)
			var err error
			meds, err = p.medications(gctx, utterances)
			return err
		})
	}

	classify := stages&(StageMedicalData|StageUrgency) != 0
	if classify {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analysis := p.classifier.Analyze(transcript)
			for _, s := range analysis.Sentences {
				p.metrics.RecordSentence(string(s.Category))
			}
			data = analysis.Data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if stages.Has(StageMedications) {
		res.Utterances = utterances
		res.Medications = meds
	}
	if stages.Has(StageMedicalData) {
		res.MedicalData = &data
	}
	if classify && stages.Has(StageUrgency) {
		assessment := triage.ScoreData(data)
		p.metrics.RecordUrgency(string(assessment.Level))
		res.Urgency = &assessment
	}
	return res, nil
}

// Medications parses each utterance into one medication record.
func (p *Pipeline) Medications(utterances []string) []models.StructuredMedication {
	meds, _ := p.medications(context.Background(), utterances)
	return meds
}

func (p *Pipeline) medications(ctx context.Context, utterances []string) ([]models.StructuredMedication, error) {
	p.metrics.RecordUtterances(len(utterances))

	meds := make([]models.StructuredMedication, 0, len(utterances))
	for _, u := range utterances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(u) == "" {
			continue
		}
		med, rule := p.extractor.ParseWithRule(u)
		p.metrics.RecordMedication(rule)
		log.Debug().Str("rule", rule).Str("name", med.Name).Msg("Medication parsed")
		meds = append(meds, med)
	}
	return meds, nil
}

// mergeMedications appends the records of b missing from a, matching on
// name, dosage and frequency case-insensitively.
func mergeMedications(a, b []models.StructuredMedication) []models.StructuredMedication {
	out := make([]models.StructuredMedication, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]models.StructuredMedication{a, b} {
		for _, m := range list {
			key := strings.ToLower(m.Name + "\x00" + m.Dosage + "\x00" + m.Frequency)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
