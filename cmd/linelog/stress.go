// FILE: lixenwraith/linelog/cmd/linelog/stress.go
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lixenwraith/linelog"
	"github.com/lixenwraith/linelog/event"
	"github.com/lixenwraith/linelog/sealed"
	"github.com/spf13/cobra"
)

var (
	stressBursts        int
	stressLinesPerBurst int
	stressWorkers       int
	stressMaxLine       int
	stressSeed          int64
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Drive a manager with random editing sessions",
	Long: `Generates random editing sessions on worker goroutines and applies them on a
single writer. Use small --set max_size_kb values to exercise rotation.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().IntVar(&stressBursts, "bursts", 100, "Number of generated sessions")
	stressCmd.Flags().IntVar(&stressLinesPerBurst, "lines", 50, "Lines per session")
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 8, "Generator goroutines")
	stressCmd.Flags().IntVar(&stressMaxLine, "max-line", 200, "Maximum committed text length")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 0, "Random seed (0 = time based)")
}

// privacy mix of generated sessions, private fields included
var stressFields = []string{
	"text/none",
	"text/short-message",
	"text/long-message",
	"text/password",
	"text/email-address",
	"number",
	"phone",
}

func randomText(rng *rand.Rand, size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(chars[rng.Intn(len(chars))])
	}
	return sb.String()
}

// Committed texts shorter than this are too likely to occur by chance in other
// sessions to be checked for leaks
const minTrackedText = 16

// generateBurst builds one focused session of random edits. It also returns the
// committed texts of a session on a private field, none of which may reach disk.
func generateBurst(rng *rand.Rand, lines, maxLine int) ([]event.Event, []string) {
	field := stressFields[rng.Intn(len(stressFields))]
	fc, err := linelog.ParseFieldClassification(field)
	private := err == nil && linelog.ClassifyPrivacy(fc)

	var secrets []string
	events := []event.Event{{Type: event.TypeFocus, Field: field}}
	for i := 0; i < lines; i++ {
		for edits := rng.Intn(4) + 1; edits > 0; edits-- {
			switch rng.Intn(6) {
			case 0:
				events = append(events, event.Event{Type: event.TypeCompose, Text: randomText(rng, 3)})
			case 1:
				events = append(events, event.Event{Type: event.TypeDelete, Before: rng.Intn(4), After: rng.Intn(2)})
			case 2:
				events = append(events, event.Event{Type: event.TypeCursor, SelStart: rng.Intn(maxLine), SelEnd: rng.Intn(maxLine)})
			case 3:
				typed := randomText(rng, 4)
				events = append(events,
					event.Event{Type: event.TypeCorrect, Typed: typed, Text: strings.ToUpper(typed)},
					event.Event{Type: event.TypeRevert})
			default:
				text := randomText(rng, rng.Intn(maxLine)+1)
				events = append(events, event.Event{Type: event.TypeCommit, Text: text})
				for _, r := range text[:min(len(text), 8)] {
					events = append(events, event.Event{Type: event.TypeKey, Key: string(r)})
				}
				if private && len(text) >= minTrackedText {
					secrets = append(secrets, text)
				}
			}
		}
		events = append(events, event.Event{Type: event.TypeFinish})
	}
	return append(events, event.Event{Type: event.TypeBlur}), secrets
}

func runStress(cmd *cobra.Command, args []string) error {
	if stressBursts <= 0 || stressLinesPerBurst <= 0 || stressWorkers <= 0 || stressMaxLine <= 0 {
		return fmt.Errorf("bursts, lines, workers and max-line must be positive")
	}
	seed := stressSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := buildManager(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()
	session := event.NewSession(m)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting stress test: %d workers, %d sessions, %d lines/session, seed %d\n",
		stressWorkers, stressBursts, stressLinesPerBurst, seed)

	// Workers only generate, the manager has a single writer
	type burst struct {
		events  []event.Event
		secrets []string
	}
	burstChan := make(chan int, stressWorkers)
	scripts := make(chan burst, stressWorkers)
	var wg sync.WaitGroup
	for w := 0; w < stressWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for burstID := range burstChan {
				rng := rand.New(rand.NewSource(seed + int64(burstID)))
				events, secrets := generateBurst(rng, stressLinesPerBurst, stressMaxLine)
				scripts <- burst{events: events, secrets: secrets}
			}
		}()
	}
	go func() {
		for i := 1; i <= stressBursts; i++ {
			burstChan <- i
		}
		close(burstChan)
		wg.Wait()
		close(scripts)
	}()

	startTime := time.Now()
	completed, applied, failed := 0, 0, 0
	var secrets []string
	for script := range scripts {
		secrets = append(secrets, script.secrets...)
		for _, ev := range script.events {
			if err := session.Apply(ev); err != nil {
				failed++
				continue
			}
			applied++
		}
		completed++
		if completed%10 == 0 || completed == stressBursts {
			fmt.Fprintf(out, "\rProgress: %d/%d sessions completed", completed, stressBursts)
		}
	}
	duration := time.Since(startTime)

	fmt.Fprintf(out, "\nApplied %d events (%d failed) in %v\n", applied, failed, duration.Round(time.Millisecond))
	if duration.Seconds() > 0 {
		fmt.Fprintf(out, "Approximate events/sec: %.2f\n", float64(applied)/duration.Seconds())
	}
	printStats(cmd, m)

	files, err := logFiles(m, cfg)
	if err != nil {
		return err
	}
	if err := m.Shutdown(); err != nil {
		return err
	}
	var key []byte
	if cfg.Encrypt {
		if key, err = secret(); err != nil {
			return err
		}
	}
	if err := checkPrivateTexts(files, secrets, key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Privacy check passed: %d private texts absent from %d files\n", len(secrets), len(files))
	return nil
}

// logFiles lists the active and archived files of the manager's line and keystroke logs.
// It must run before Shutdown.
func logFiles(m *linelog.Manager, cfg *linelog.Config) ([]string, error) {
	names := []string{cfg.LineLogName}
	if cfg.LogKeystrokes {
		names = append(names, cfg.KeystrokeLogName)
	}

	var files []string
	for _, name := range names {
		sink, err := m.ResolveLogDestination(name)
		if errors.Is(err, linelog.ErrStorageUnavailable) {
			// Nothing reached disk
			continue
		}
		if err != nil {
			return nil, err
		}
		archives, err := sink.Archives()
		if err != nil {
			return nil, err
		}
		files = append(files, sink.Path())
		files = append(files, archives...)
	}
	return files, nil
}

// checkPrivateTexts fails when any of secrets occurs in one of files. Files are
// decrypted with key when it is set.
func checkPrivateTexts(files, secrets []string, key []byte) error {
	if len(secrets) == 0 {
		return nil
	}
	for _, path := range files {
		data, err := readLogFile(path, key)
		if err != nil {
			return err
		}
		for _, text := range secrets {
			if bytes.Contains(data, []byte(text)) {
				return fmt.Errorf("private field text %q found in '%s'", text, path)
			}
		}
	}
	return nil
}

func readLogFile(path string, key []byte) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	if key == nil {
		return io.ReadAll(f)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}
	reader, err := sealed.NewReader(f, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt '%s': %w", path, err)
	}
	return io.ReadAll(reader)
}
