package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clinical-dictation-service/internal/app"
	"clinical-dictation-service/internal/config"
	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/capture"
	"clinical-dictation-service/internal/service/dictation"
	"clinical-dictation-service/internal/service/fallback"
	"clinical-dictation-service/internal/service/triage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "dictation",
		Short:        "Clinical dictation to structured data",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(triageCmd())
	rootCmd.AddCommand(transcribeCmd())
	rootCmd.AddCommand(dictateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadApp() (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg), nil
}

func purposeFlag(cmd *cobra.Command, a *app.Application) (dictation.Purpose, error) {
	name, _ := cmd.Flags().GetString("purpose")
	if name == "" {
		return a.Purpose()
	}
	return dictation.ParsePurpose(name)
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract structured data from a transcript file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			purpose, err := purposeFlag(cmd, a)
			if err != nil {
				return err
			}

			var data []byte
			if path == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			pipeline, err := a.Pipeline()
			if err != nil {
				return err
			}
			res, err := pipeline.Process(cmd.Context(), purpose.Stages(), strings.TrimSpace(string(data)))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newExtractOutput(purpose, res))
		},
	}
	cmd.Flags().String("file", "-", "Transcript text file, - for stdin")
	cmd.Flags().String("purpose", "", "notes, diagnosis, prescription or triage (default from DICTATION_PURPOSE)")
	return cmd
}

func triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Score symptom text and a pain level",
		RunE: func(cmd *cobra.Command, args []string) error {
			symptoms, _ := cmd.Flags().GetString("symptoms")
			pain, _ := cmd.Flags().GetInt("pain")
			return writeJSON(cmd.OutOrStdout(), triage.Score(symptoms, pain))
		},
	}
	cmd.Flags().String("symptoms", "", "Free-text symptom description")
	cmd.Flags().Int("pain", 0, "Pain level 0-10")
	return cmd
}

func transcribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe a WAV recording with the fallback provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("audio")

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			t, err := a.Fallback(cmd.Context())
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("no fallback provider configured, set FALLBACK_PROVIDER")
			}

			clip, err := readClip(path, a.Cfg.STT.LanguageCode)
			if err != nil {
				return err
			}
			text, err := t.Transcribe(cmd.Context(), clip)
			if err != nil {
				return fmt.Errorf("%s: %w", fallback.Message(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().String("audio", "", "Path to a 16-bit PCM WAV file")
	cmd.MarkFlagRequired("audio")
	return cmd
}

func dictateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictate",
		Short: "Run a dictation session over a WAV recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("audio")
			live, _ := cmd.Flags().GetBool("live")
			realtime, _ := cmd.Flags().GetBool("realtime")

			a, err := loadApp()
			if err != nil {
				return err
			}
			if err := a.Start(); err != nil {
				return err
			}
			defer a.Shutdown()

			purpose, err := purposeFlag(cmd, a)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &printSink{w: cmd.OutOrStdout()}
			session, err := a.NewSession(ctx, purpose, out, live)
			if err != nil {
				return err
			}
			defer session.Close()

			rec := capture.NewWAVRecorder(path,
				capture.WithRealtime(realtime),
				capture.WithLanguage(a.Cfg.STT.LanguageCode))

			id, err := session.Start(ctx, rec)
			if err != nil {
				return err
			}
			a.Logger.Info().Str("sessionId", id).Str("purpose", string(purpose)).Msg("Dictation started")

			if waitCapture(ctx, session, rec) {
				return nil
			}
			session.Stop()

			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			return waitIdle(wctx, session)
		},
	}
	cmd.Flags().String("audio", "", "Path to a 16-bit PCM WAV file")
	cmd.Flags().String("purpose", "", "notes, diagnosis, prescription or triage (default from DICTATION_PURPOSE)")
	cmd.Flags().Bool("live", true, "Stream through the live transcription source")
	cmd.Flags().Bool("realtime", true, "Pace audio chunks at recording speed")
	cmd.MarkFlagRequired("audio")
	return cmd
}

// waitCapture blocks until the file has been streamed or ctx is done. It
// reports true when a spoken terminate phrase already finished the session.
func waitCapture(ctx context.Context, s *dictation.Session, rec *capture.WAVRecorder) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-rec.Ended():
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.State() == dictation.StateIdle {
				return true
			}
		}
	}
}

// waitIdle returns once Stop has finished processing.
func waitIdle(ctx context.Context, s *dictation.Session) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for s.State() != dictation.StateIdle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func readClip(path, language string) (models.AudioClip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AudioClip{}, fmt.Errorf("read audio: %w", err)
	}
	format, err := capture.ReadWAVHeader(bytes.NewReader(data))
	if err != nil {
		return models.AudioClip{}, fmt.Errorf("read audio %s: %w", path, err)
	}
	return models.AudioClip{
		Data:         data,
		MIMEType:     "audio/wav",
		SampleRateHz: int(format.SampleRate),
		LanguageCode: language,
	}, nil
}

type extractOutput struct {
	Purpose     dictation.Purpose             `json:"purpose"`
	Utterances  []string                      `json:"utterances,omitempty"`
	Medications []models.StructuredMedication `json:"medications,omitempty"`
	MedicalData *models.StructuredMedicalData `json:"medicalData,omitempty"`
	Urgency     *models.UrgencyAssessment     `json:"urgency,omitempty"`
}

func newExtractOutput(p dictation.Purpose, res dictation.Result) extractOutput {
	return extractOutput{
		Purpose:     p,
		Utterances:  res.Utterances,
		Medications: res.Medications,
		MedicalData: res.MedicalData,
		Urgency:     res.Urgency,
	}
}

// printSink writes session output as JSON lines.
type printSink struct {
	mu sync.Mutex
	w  io.Writer
}

type sessionLine struct {
	SessionID   string                        `json:"sessionId"`
	Kind        string                        `json:"kind"`
	Status      string                        `json:"status,omitempty"`
	Medications []models.StructuredMedication `json:"medications,omitempty"`
	MedicalData *models.StructuredMedicalData `json:"medicalData,omitempty"`
	Urgency     *models.UrgencyAssessment     `json:"urgency,omitempty"`
}

func (p *printSink) write(line sessionLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	json.NewEncoder(p.w).Encode(line)
}

func (p *printSink) OnMedicationsExtracted(meta dictation.Meta, meds []models.StructuredMedication) {
	p.write(sessionLine{SessionID: meta.SessionID, Kind: "medications", Medications: meds})
}

func (p *printSink) OnMedicalDataExtracted(meta dictation.Meta, data models.StructuredMedicalData) {
	p.write(sessionLine{SessionID: meta.SessionID, Kind: "medicalData", MedicalData: &data})
}

func (p *printSink) OnUrgencyComputed(meta dictation.Meta, a models.UrgencyAssessment) {
	p.write(sessionLine{SessionID: meta.SessionID, Kind: "urgency", Urgency: &a})
}

func (p *printSink) OnStatus(meta dictation.Meta, status string) {
	p.write(sessionLine{SessionID: meta.SessionID, Kind: "status", Status: status})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
