package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gopedal/pkg/autocal"
	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/recorder"
	"github.com/itohio/gopedal/pkg/telemetry"
)

// handleRecordToggle starts or stops a recording session.
func handleRecordToggle(state *appState) {
	state.recMu.Lock()
	recording := state.sessionID != ""
	state.recMu.Unlock()

	if recording {
		stopRecording(state)
		return
	}
	if state.device == nil || !state.device.IsConnected() {
		dialog.ShowInformation("Not connected", "Connect to the pedals before recording.", state.window)
		return
	}
	startRecording(state)
}

// startRecording opens the recorder database if needed and starts a session.
func startRecording(state *appState) {
	state.recMu.Lock()
	defer state.recMu.Unlock()

	if err := state.openRecorderLocked(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}

	id, err := state.rec.StartSession(sessionNote(state.useMock, state.cfg.Serial.Port, time.Now()))
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.sessionID = id
	state.recordBtn.SetIcon(theme.MediaStopIcon())
	fmt.Printf("Recording session %s to %s\n", id, state.cfg.Recorder.Path)
}

// stopRecording ends the active session, if any.
func stopRecording(state *appState) {
	state.recMu.Lock()
	defer state.recMu.Unlock()

	if state.sessionID == "" {
		return
	}
	fmt.Printf("Stopped recording session %s\n", state.sessionID)
	state.sessionID = ""
	state.recordBtn.SetIcon(theme.MediaRecordIcon())
}

// openRecorderLocked opens the recorder database unless it is already
// open. recMu must be held.
func (state *appState) openRecorderLocked() error {
	if state.rec != nil {
		return nil
	}
	rec, err := recorder.Open(state.cfg.Recorder.Path)
	if err != nil {
		return err
	}
	state.rec = rec
	return nil
}

// openRecorder returns the open recorder database, opening it if needed.
func (state *appState) openRecorder() (*recorder.Recorder, error) {
	state.recMu.Lock()
	defer state.recMu.Unlock()
	if err := state.openRecorderLocked(); err != nil {
		return nil, err
	}
	return state.rec, nil
}

// closeRecorder closes the database on exit.
func (state *appState) closeRecorder() {
	state.recMu.Lock()
	defer state.recMu.Unlock()

	if state.rec == nil {
		return
	}
	if err := state.rec.Close(); err != nil {
		log.Printf("error closing recorder: %v", err)
	}
	state.rec = nil
}

// recordFrames writes frames to the active session until frames closes.
func (state *appState) recordFrames(frames <-chan telemetry.Frame) {
	for f := range frames {
		state.recMu.Lock()
		rec, id := state.rec, state.sessionID
		state.recMu.Unlock()
		if id == "" {
			continue
		}
		if err := rec.Record(id, f); err != nil {
			log.Printf("recorder: %v", err)
		}
	}
}

func sessionNote(mock bool, port string, at time.Time) string {
	source := port
	if mock {
		source = "simulator"
	}
	return fmt.Sprintf("%s %s", source, at.Format(time.RFC3339))
}

// autocalOptions converts the configured autocal settings.
func autocalOptions(cfg config.AutocalConfig) autocal.Options {
	opts := autocal.DefaultOptions()
	opts.LowQuantile = cfg.LowQuantile
	opts.HighQuantile = cfg.HighQuantile
	opts.Margin = cfg.Margin
	return opts
}

// liveSource labels the plotted history in the calibration source picker.
const liveSource = "Live history"

// sessionLabel names a recorded session in the source picker.
func sessionLabel(s recorder.Session) string {
	note := s.Note
	if note == "" {
		note = s.ID
	}
	return fmt.Sprintf("%s (%d frames)", note, s.Frames)
}

// calibrationSources returns the picker labels, live history first, and
// the session id behind each recorded label.
func calibrationSources(sessions []recorder.Session) ([]string, map[string]string) {
	labels := []string{liveSource}
	ids := make(map[string]string, len(sessions))
	for _, s := range sessions {
		label := sessionLabel(s)
		if _, dup := ids[label]; dup {
			label = fmt.Sprintf("%s [%s]", label, s.ID)
		}
		labels = append(labels, label)
		ids[label] = s.ID
	}
	return labels, ids
}

// calibrationFrames returns the live history when sessionID is empty and
// the recorded session otherwise.
func calibrationFrames(live func() []telemetry.Frame, rec *recorder.Recorder, sessionID string) ([]telemetry.Frame, error) {
	if sessionID == "" {
		return live(), nil
	}
	if rec == nil {
		return nil, errors.New("recorder is not open")
	}
	frames, err := rec.Frames(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return frames, nil
}

// handleAutocal lets the operator pick the live history or a recorded
// session, suggests bounds from it and sends them to the device after
// confirmation.
func handleAutocal(state *appState) {
	current, ok := state.currentRecord()
	if !ok {
		state.send("PRINT")
		dialog.ShowInformation("Auto-calibrate", "Waiting for the device configuration, try again in a moment.", state.window)
		return
	}

	var sessions []recorder.Session
	rec, err := state.openRecorder()
	if err != nil {
		log.Printf("recorder unavailable, calibrating from live history: %v", err)
	} else if sessions, err = rec.Sessions(); err != nil {
		log.Printf("failed to list sessions: %v", err)
	}

	labels, ids := calibrationSources(sessions)
	source := widget.NewSelect(labels, nil)
	source.SetSelected(liveSource)

	items := []*widget.FormItem{widget.NewFormItem("Source", source)}
	dialog.ShowForm("Auto-calibrate", "Suggest", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		frames, err := calibrationFrames(state.history.Frames, rec, ids[source.Selected])
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		suggestAndApply(state, current, frames)
	}, state.window)
}

// suggestAndApply runs the analysis on frames and confirms the result
// with the operator.
func suggestAndApply(state *appState, current record.Record, frames []telemetry.Frame) {
	suggestion, err := autocal.Suggest(frames, autocalOptions(state.cfg.Autocal))
	if err != nil {
		dialog.ShowError(fmt.Errorf("auto-calibrate: %w", err), state.window)
		return
	}
	if err := suggestion.Apply(current).Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("auto-calibrate: %w", err), state.window)
		return
	}

	dialog.ShowConfirm("Apply suggested bounds?", describeSuggestion(current, suggestion), func(apply bool) {
		if !apply {
			return
		}
		for _, cmd := range suggestion.Commands(current) {
			state.send(cmd)
		}
		state.send("PRINT")
	}, state.window)
}

// describeSuggestion lists the current and suggested bounds per channel.
func describeSuggestion(current record.Record, s autocal.Suggestion) string {
	proposed := s.Apply(current)

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d samples:\n\n", s.Samples)
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		c := s.Channels[ch]
		fmt.Fprintf(&b, "%-9s %d..%d -> %d..%d (mean %.0f, sd %.1f)\n",
			ch.String()+":",
			current.Bounds[ch].Min, current.Bounds[ch].Max,
			proposed.Bounds[ch].Min, proposed.Bounds[ch].Max,
			c.Mean, c.StdDev)
	}
	b.WriteString("\nChanges are not persisted until Save.")
	return b.String()
}
