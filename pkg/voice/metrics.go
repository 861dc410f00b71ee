package voice

import (
	"sync"
	"time"
)

// Metrics tracks latency at each stage of one conversation turn.
// All durations are measured from the moment capture ended.
type Metrics struct {
	SpeechEndTime time.Time // capture finished
	TranscriptAt  time.Time // transcript known
	ChatDoneAt    time.Time // assistant reply received
	SynthesisAt   time.Time // synthesized audio received
	TurnDoneAt    time.Time // playback finished

	ASRLatency   time.Duration
	ChatLatency  time.Duration
	TTSLatency   time.Duration
	TotalLatency time.Duration
}

// MetricsCollector records per-turn latencies. Safe for use from
// multiple pipeline callbacks.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever a stage completes.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// MarkSpeechEnd starts a new turn. This is the reference point for all
// latency measurements.
func (m *MetricsCollector) MarkSpeechEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{SpeechEndTime: time.Now()}
}

// MarkTranscript records when the transcript became available.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptAt = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.ASRLatency = m.current.TranscriptAt.Sub(m.current.SpeechEndTime)
	}
	m.notify()
}

// MarkChatDone records when the assistant reply arrived.
func (m *MetricsCollector) MarkChatDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChatDoneAt = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.ChatLatency = m.current.ChatDoneAt.Sub(m.current.SpeechEndTime)
	}
	m.notify()
}

// MarkSynthesisDone records when synthesized audio arrived.
func (m *MetricsCollector) MarkSynthesisDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.SynthesisAt = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TTSLatency = m.current.SynthesisAt.Sub(m.current.SpeechEndTime)
	}
	m.notify()
}

// MarkTurnDone closes the turn and archives it.
func (m *MetricsCollector) MarkTurnDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TurnDoneAt = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TotalLatency = m.current.TurnDoneAt.Sub(m.current.SpeechEndTime)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	m.notify()
}

// Current returns the in-progress turn's metrics.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.ASRLatency += h.ASRLatency
		avg.ChatLatency += h.ChatLatency
		avg.TTSLatency += h.TTSLatency
		avg.TotalLatency += h.TotalLatency
	}
	n := time.Duration(len(m.history))
	avg.ASRLatency /= n
	avg.ChatLatency /= n
	avg.TTSLatency /= n
	avg.TotalLatency /= n
	return avg
}

// notify must be called with the mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		snapshot := m.current
		go m.onUpdate(snapshot)
	}
}

// FormatLatency renders the turn's latencies for the status line.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.ASRLatency) + " ASR | " +
		formatDuration(m.ChatLatency) + " CHAT | " +
		formatDuration(m.TTSLatency) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
