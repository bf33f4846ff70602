package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"aide/config"
	"aide/model"
)

// Turn-level errors returned synchronously by Send. Errors occurring after
// Send has returned are surfaced through LastError instead, because the
// caller is no longer waiting on the call by the time streaming can fail.
var (
	// ErrEmptyMessage rejects a send whose text is blank.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrBusy rejects a send while another turn is in flight. Interleaving
	// two open placeholders would corrupt delta routing by message id.
	ErrBusy = errors.New("a turn is already in flight for this session")

	// ErrNoBackend means the selected strategy has no configured backend.
	ErrNoBackend = errors.New("no backend configured for the selected strategy")
)

// titleMaxLen bounds the session title derived from the first user message.
const titleMaxLen = 50

// Options configures an Engine.
type Options struct {
	// Gateway serves StrategyGateway sends. Required unless every send will
	// resolve to a native strategy.
	Gateway model.Backend

	// Native serves StrategyNativeStream and StrategySync sends.
	Native model.Backend

	// Strategy selector inputs. HasCredential reports whether a
	// direct-provider credential is configured.
	ForceGateway    bool
	PreferStreaming bool
	HasCredential   bool

	// History overrides the default history builder.
	History *HistoryBuilder

	// Context supplies the user context for the system preamble. Optional.
	Context model.ContextProvider

	// Sink persists messages and sessions, best-effort. Optional.
	Sink model.Sink
}

// Engine owns the active session and drives one conversational turn at a
// time: append the user message, pick a strategy, open exactly one backend
// call, funnel its deltas through the accumulator into the session, and
// finalize on completion or error.
//
// The engine is the single serialized owner of session and accumulator state.
// Backend callbacks may fire on arbitrary goroutines; every one of them takes
// the engine lock before touching shared state. Readers get consistent deep
// copies from Snapshot, never the live slices.
type Engine struct {
	mu sync.Mutex

	session *model.Session

	gateway model.Backend
	native  model.Backend

	forceGateway    bool
	preferStreaming bool
	hasCredential   bool

	history         *HistoryBuilder
	contextProvider model.ContextProvider
	sink            model.Sink

	// inFlight is the id of the open assistant placeholder, or "" when idle.
	// Deltas keyed to any other id are dropped: late delivery after
	// finalization is a defined race outcome, not an error.
	inFlight string
	acc      *Accumulator

	lastErr error
}

// NewEngine creates an engine owning the given session.
func NewEngine(session *model.Session, opts Options) *Engine {
	hb := opts.History
	if hb == nil {
		hb = NewHistoryBuilder()
	}
	return &Engine{
		session:         session,
		gateway:         opts.Gateway,
		native:          opts.Native,
		forceGateway:    opts.ForceGateway,
		preferStreaming: opts.PreferStreaming,
		hasCredential:   opts.HasCredential,
		history:         hb,
		contextProvider: opts.Context,
		sink:            opts.Sink,
	}
}

// Send starts one turn. It appends the finalized user message and the empty
// assistant placeholder synchronously, then returns while streaming continues
// in the background; the caller observes progress through Snapshot. The
// returned channel is closed when the turn reaches Completed or Failed.
func (e *Engine) Send(ctx context.Context, text string, tools []mcptypes.Tool) (<-chan struct{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	e.mu.Lock()
	if e.inFlight != "" {
		e.mu.Unlock()
		return nil, ErrBusy
	}

	strategy := SelectStrategy(e.forceGateway, e.hasCredential, e.preferStreaming)
	backend := e.backendFor(strategy)
	if backend == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, strategy)
	}

	// History is snapshotted before the new user message is appended; the
	// builder re-appends the user text itself.
	history := make([]model.Message, len(e.session.Messages))
	for i, m := range e.session.Messages {
		history[i] = m.Clone()
	}

	userMsg := model.NewMessage(model.RoleUser, text)
	e.session.Messages = append(e.session.Messages, userMsg)
	e.session.UpdatedAt = userMsg.CreatedAt

	placeholder := model.NewMessage(model.RoleAssistant, "")
	placeholder.Provider = backend.Name()
	placeholder.Model = backend.Model()
	e.session.Messages = append(e.session.Messages, placeholder)

	e.inFlight = placeholder.ID
	e.acc = NewAccumulator(placeholder)
	e.lastErr = nil
	sessionID := e.session.ID
	e.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] Turn %s: strategy=%s backend=%s model=%s",
			placeholder.ID, strategy, backend.Name(), backend.Model())
	}

	// The user message is persisted fire-and-forget: a sink failure is a
	// warning, never a reason to skip the network call.
	go e.persistMessage(ctx, sessionID, userMsg)

	done := make(chan struct{})
	go e.run(ctx, strategy, backend, history, text, tools, placeholder.ID, done)
	return done, nil
}

// Backend returns the backend a given strategy would use, or nil when none
// is configured. Useful for callers that need provider-level operations such
// as model listing outside of a turn.
func (e *Engine) Backend(s Strategy) model.Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backendFor(s)
}

// backendFor maps a strategy to its backend. Both native strategies share the
// same backend; only the invocation mode differs.
func (e *Engine) backendFor(s Strategy) model.Backend {
	switch s {
	case StrategyGateway:
		return e.gateway
	default:
		return e.native
	}
}

// run executes the backend call for one turn and finalizes the session.
func (e *Engine) run(ctx context.Context, strategy Strategy, backend model.Backend, history []model.Message, userText string, tools []mcptypes.Tool, msgID string, done chan struct{}) {
	defer close(done)

	userContext := ""
	if e.contextProvider != nil {
		userContext = e.contextProvider.UserContext(ctx)
	}
	request := e.history.Build(history, userText, userContext)

	start := time.Now()

	if strategy == StrategySync {
		final, err := backend.Complete(ctx, request, tools)
		if err != nil {
			e.fail(ctx, msgID, err)
			return
		}
		e.applyFinal(msgID, final)
		e.finish(ctx, msgID, start)
		return
	}

	handler := &turnHandler{engine: e, msgID: msgID}
	if err := backend.Stream(ctx, request, tools, handler); err != nil {
		e.fail(ctx, msgID, err)
		return
	}
	e.finish(ctx, msgID, start)
}

// applyFinal feeds a synchronous single-shot result through the accumulator
// so both paths produce the message the same way.
func (e *Engine) applyFinal(msgID string, final model.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight != msgID {
		return
	}
	e.acc.ApplyText(final.Content)
	for i, tc := range final.ToolCalls {
		e.acc.ApplyToolCall(i, tc.ID, tc.Name, tc.Arguments, true)
	}
	if !final.Usage.Zero() {
		e.acc.ApplyUsage(final.Usage)
	}
	e.replaceMessageLocked(e.acc.Message())
}

// finish freezes the assistant message, refreshes session metadata, derives
// the title on the first exchange, and persists the results.
func (e *Engine) finish(ctx context.Context, msgID string, start time.Time) {
	e.mu.Lock()
	if e.inFlight != msgID {
		e.mu.Unlock()
		return
	}
	final := e.acc.Message()
	final.LatencyMS = time.Since(start).Milliseconds()
	e.replaceMessageLocked(final)
	e.session.UpdatedAt = time.Now()
	if len(e.session.Messages) == 2 {
		e.session.Title = deriveTitle(e.session)
	}
	e.inFlight = ""
	e.acc = nil
	sessionID := e.session.ID
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] Turn %s: completed in %dms (%d chars, %d tool calls)",
			msgID, final.LatencyMS, len(final.Content), len(final.ToolCalls))
	}

	e.persistMessage(ctx, sessionID, final)
	e.persistSession(ctx, snapshot)
}

// fail transitions the turn to Failed. Partial content accumulated so far is
// kept in the session; the error becomes the session-scoped last error.
func (e *Engine) fail(ctx context.Context, msgID string, err error) {
	e.mu.Lock()
	if e.inFlight != msgID {
		e.mu.Unlock()
		return
	}
	final := e.acc.Message()
	e.replaceMessageLocked(final)
	e.session.UpdatedAt = time.Now()
	e.inFlight = ""
	e.acc = nil
	e.lastErr = err
	sessionID := e.session.ID
	e.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] Turn %s: failed: %v", msgID, err)
	}

	// Persist whatever partial output we have; it is still useful.
	e.persistMessage(ctx, sessionID, final)
}

// replaceMessageLocked swaps the session's copy of a message in place (same
// id, same position). Caller holds the lock.
func (e *Engine) replaceMessageLocked(msg model.Message) {
	for i := range e.session.Messages {
		if e.session.Messages[i].ID == msg.ID {
			e.session.Messages[i] = msg
			return
		}
	}
}

func (e *Engine) persistMessage(ctx context.Context, sessionID string, msg model.Message) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveMessage(ctx, sessionID, msg); err != nil {
		e.warn(fmt.Errorf("persist message: %w", err))
	}
}

func (e *Engine) persistSession(ctx context.Context, session *model.Session) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveSession(ctx, session); err != nil {
		e.warn(fmt.Errorf("persist session: %w", err))
	}
}

// warn records a non-fatal error. In-memory state stays authoritative and the
// turn is not failed because of it. A warning never displaces an error
// already recorded for the turn, so a failed persist after a failed stream
// still surfaces the stream error.
func (e *Engine) warn(err error) {
	e.mu.Lock()
	if e.lastErr == nil {
		e.lastErr = err
	}
	e.mu.Unlock()
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] Warning: %v", err)
	}
}

// Snapshot returns a deep copy of the session for concurrent readers.
func (e *Engine) Snapshot() *model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// LastError returns the session-scoped last error, or nil.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// InFlight reports whether a turn is currently streaming.
func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight != ""
}

// SetSession switches the engine to a different session. Rejected while a
// turn is in flight: the active session's message list must never be forked
// or aliased mid-stream.
func (e *Engine) SetSession(session *model.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight != "" {
		return ErrBusy
	}
	e.session = session
	e.lastErr = nil
	return nil
}

// deriveTitle builds the session title from the first user message.
func deriveTitle(s *model.Session) string {
	first := s.FirstUserMessage()
	if first == nil {
		return s.Title
	}
	title := strings.TrimSpace(first.Content)
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen])
	}
	if title == "" {
		return s.Title
	}
	return title
}

// turnHandler marshals backend callbacks onto the engine's lock one at a
// time, in arrival order, before they touch shared state. Events for a
// message id that is no longer open are silently dropped.
type turnHandler struct {
	engine *Engine
	msgID  string
}

func (h *turnHandler) TextDelta(fragment string) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight != h.msgID {
		return
	}
	e.acc.ApplyText(fragment)
	e.replaceMessageLocked(e.acc.Message())
}

func (h *turnHandler) ToolCallDelta(index int, id, name, argsFragment string, completed bool) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight != h.msgID {
		return
	}
	e.acc.ApplyToolCall(index, id, name, argsFragment, completed)
	e.replaceMessageLocked(e.acc.Message())
}

func (h *turnHandler) UsageDelta(usage model.Usage) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight != h.msgID {
		return
	}
	e.acc.ApplyUsage(usage)
	e.replaceMessageLocked(e.acc.Message())
}
