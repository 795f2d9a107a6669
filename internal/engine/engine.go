// Package engine implements the session state machine that sequences claim
// document turns and triggers calculation once the required documents are
// present.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/extract"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// InputType tells the caller what kind of input the next turn expects.
type InputType string

// Input type constants.
const (
	InputFile    InputType = "file"
	InputText    InputType = "text"
	InputOptions InputType = "options"
)

// ResetCommand returns any session to the initial state.
const ResetCommand = "reset"

// Option is one selectable choice presented to the user.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TurnInput is one conversational turn: free text, an uploaded document, or
// both. An empty SessionID starts a new session.
type TurnInput struct {
	SessionID string
	UserInput string
	Document  *model.Document
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Claim       *model.ClaimResult
	PriceLookup *model.PriceLookup
	SessionID   string
	Status      model.Status
	Reply       string
	InputType   InputType
	Options     []Option
}

// Config holds configuration options for the engine.
type Config struct {
	// LockWait bounds how long a turn waits for an in-flight turn on the
	// same session before reporting busy.
	LockWait time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{LockWait: 5 * time.Second}
}

// Engine orchestrates turn order, accumulates extracted document data per
// session and invokes the claim calculator when all required documents are
// present. Turns for the same session are serialized; a concurrent second
// turn gets common.ErrSessionBusy after a bounded wait.
type Engine struct {
	storage    service.Storage
	extractor  Extractor
	matcher    PriceResolver
	calculator Calculator
	locks      *sessionLocks
	logger     *slog.Logger
	lockWait   time.Duration
}

// New creates an engine with default configuration.
func New(storage service.Storage, extractor Extractor, matcher PriceResolver, calculator Calculator, logger *slog.Logger) *Engine {
	return NewWithConfig(storage, extractor, matcher, calculator, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, extractor Extractor, matcher PriceResolver, calculator Calculator, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = DefaultConfig().LockWait
	}
	return &Engine{
		storage:    storage,
		extractor:  extractor,
		matcher:    matcher,
		calculator: calculator,
		locks:      newSessionLocks(),
		logger:     logger,
		lockWait:   lockWait,
	}
}

// Advance processes one turn. Session state is loaded fresh from storage,
// mutated under the per-session lock and persisted before returning; no
// execution state survives between turns. User-level problems (wrong
// document type, unreadable fields, transport hiccups) come back as replies
// with the state unchanged; only infrastructure failures return an error.
func (e *Engine) Advance(ctx context.Context, input TurnInput) (*TurnResult, error) {
	id := strings.TrimSpace(input.SessionID)
	if id == "" {
		id = uuid.NewString()
	}

	if !e.locks.acquire(ctx, id, e.lockWait) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionBusy)
	}
	defer e.locks.release(id)

	session, err := e.storage.GetSession(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSessionNotFound) || errors.Is(err, common.ErrNotFound):
		session = model.NewSession(id)
		if createErr := e.storage.CreateSession(ctx, session); createErr != nil {
			return nil, fmt.Errorf("failed to create session: %w", createErr)
		}
	default:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	result, err := e.dispatch(ctx, session, input)
	if err != nil {
		var userErr *common.UserError
		if !errors.As(err, &userErr) {
			return nil, err
		}
		// Corrective turn: the session stays where it is and the user
		// gets the standing prompt back with an explanation.
		e.logger.Warn("turn input rejected",
			"session_id", session.ID,
			"status", session.Status,
			"error", err)
		result = e.reprompt(session)
		result.Reply = userErr.UserMessage
	}

	session.Touch()
	if err := e.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	result.SessionID = session.ID
	result.Status = session.Status

	e.logger.Info("turn processed",
		"session_id", session.ID,
		"status", session.Status,
		"input_type", result.InputType)

	return result, nil
}

func (e *Engine) dispatch(ctx context.Context, session *model.Session, input TurnInput) (*TurnResult, error) {
	if strings.EqualFold(strings.TrimSpace(input.UserInput), ResetCommand) {
		session.Reset()
		return &TurnResult{
			Reply:     "Session reset. Please upload your policy document to begin a new assessment.",
			InputType: InputFile,
		}, nil
	}

	switch session.Status {
	case model.StatusAwaitingPolicy:
		return e.handlePolicy(ctx, session, input)
	case model.StatusAwaitingDocumentChoice:
		return e.handleChoice(session, input)
	case model.StatusAwaitingBill:
		return e.handleBill(ctx, session, input, true)
	case model.StatusAwaitingPrescription:
		return e.handlePrescription(ctx, session, input)
	case model.StatusAwaitingBothBill:
		return e.handleBill(ctx, session, input, false)
	case model.StatusAwaitingBothPrescription:
		return e.handleBothPrescription(ctx, session, input)
	case model.StatusCompleted:
		return e.handleCompleted(session), nil
	default:
		return nil, fmt.Errorf("session %s has unknown status %q", session.ID, session.Status)
	}
}

func (e *Engine) handlePolicy(ctx context.Context, session *model.Session, input TurnInput) (*TurnResult, error) {
	if input.Document == nil {
		return &TurnResult{
			Reply:     "Welcome to claim assessment. Please upload your policy document to begin.",
			InputType: InputFile,
		}, nil
	}

	data, reply := e.extractDocument(ctx, *input.Document, model.DocumentPolicy)
	if reply != nil {
		return reply, nil
	}

	session.SetDocument(data)
	session.Factors = extract.ParsePolicyFactors(data)
	session.Status = model.StatusAwaitingDocumentChoice

	return &TurnResult{
		Reply:     "Policy parsed. What would you like to process next?",
		InputType: InputOptions,
		Options:   choiceOptions(),
	}, nil
}

func (e *Engine) handleChoice(session *model.Session, input TurnInput) (*TurnResult, error) {
	if input.Document != nil {
		return nil, common.NewUserError(
			"Please pick one of the options first; I will ask for the document right after.",
			common.ErrTypeMismatch)
	}

	switch model.DocumentChoice(strings.ToLower(strings.TrimSpace(input.UserInput))) {
	case model.ChoiceBill:
		session.Choice = model.ChoiceBill
		session.Status = model.StatusAwaitingBill
		return &TurnResult{
			Reply:     "Please upload the hospital bill.",
			InputType: InputFile,
		}, nil
	case model.ChoicePrescription:
		session.Choice = model.ChoicePrescription
		session.Status = model.StatusAwaitingPrescription
		return &TurnResult{
			Reply:     "Please upload the prescription.",
			InputType: InputFile,
		}, nil
	case model.ChoiceBoth:
		session.Choice = model.ChoiceBoth
		session.Status = model.StatusAwaitingBothBill
		return &TurnResult{
			Reply:     "Please upload the hospital bill first; I will ask for the prescription next.",
			InputType: InputFile,
		}, nil
	default:
		return &TurnResult{
			Reply:     "I did not understand that choice. What would you like to process?",
			InputType: InputOptions,
			Options:   choiceOptions(),
		}, nil
	}
}

func (e *Engine) handleBill(ctx context.Context, session *model.Session, input TurnInput, final bool) (*TurnResult, error) {
	if input.Document == nil {
		return &TurnResult{
			Reply:     "Please upload the hospital bill.",
			InputType: InputFile,
		}, nil
	}

	data, reply := e.extractDocument(ctx, *input.Document, model.DocumentBill)
	if reply != nil {
		return reply, nil
	}
	session.SetDocument(data)

	if !final {
		session.Status = model.StatusAwaitingBothPrescription
		return &TurnResult{
			Reply:     "Bill captured. Now please upload the prescription.",
			InputType: InputFile,
		}, nil
	}

	return e.completeWithClaim(ctx, session)
}

func (e *Engine) handlePrescription(ctx context.Context, session *model.Session, input TurnInput) (*TurnResult, error) {
	if input.Document == nil {
		return &TurnResult{
			Reply:     "Please upload the prescription.",
			InputType: InputFile,
		}, nil
	}

	data, reply := e.extractDocument(ctx, *input.Document, model.DocumentPrescription)
	if reply != nil {
		return reply, nil
	}
	session.SetDocument(data)

	lookup, err := e.lookupProcedurePrice(ctx, data)
	if err != nil {
		if errors.Is(err, common.ErrTransport) {
			return transientReply(), nil
		}
		return nil, err
	}

	session.PriceLookup = lookup
	session.Status = model.StatusCompleted

	return &TurnResult{
		Reply: fmt.Sprintf("Estimated price for %s: %s. Type %q to start a new assessment.",
			lookup.ProcedureName, formatPrice(lookup.Candidate), ResetCommand),
		InputType:   InputText,
		PriceLookup: lookup,
	}, nil
}

func (e *Engine) handleBothPrescription(ctx context.Context, session *model.Session, input TurnInput) (*TurnResult, error) {
	if input.Document == nil {
		return &TurnResult{
			Reply:     "Please upload the prescription.",
			InputType: InputFile,
		}, nil
	}

	data, reply := e.extractDocument(ctx, *input.Document, model.DocumentPrescription)
	if reply != nil {
		return reply, nil
	}
	session.SetDocument(data)

	if lookup, err := e.lookupProcedurePrice(ctx, data); err == nil {
		session.PriceLookup = lookup
	} else if !errors.Is(err, common.ErrTransport) {
		return nil, err
	}

	return e.completeWithClaim(ctx, session)
}

// completeWithClaim runs the calculator over the stored bill and moves the
// session to completed.
func (e *Engine) completeWithClaim(ctx context.Context, session *model.Session) (*TurnResult, error) {
	bill := session.Document(model.DocumentBill)
	if bill == nil {
		return nil, fmt.Errorf("session %s has no bill data to calculate from", session.ID)
	}

	claim, err := e.calculator.Calculate(ctx, bill, session.Factors)
	if err != nil {
		return nil, fmt.Errorf("claim calculation failed: %w", err)
	}

	e.saveEstimatedPrices(ctx, claim)

	session.Claim = claim
	session.Status = model.StatusCompleted

	result := &TurnResult{
		Reply: fmt.Sprintf(
			"Assessment complete. Total billed %.2f: insurer pays %.2f, patient pays %.2f. Type %q to start a new assessment.",
			claim.TotalBilled, claim.InsurerPayable, claim.PatientPayable, ResetCommand),
		InputType:   InputText,
		Claim:       claim,
		PriceLookup: session.PriceLookup,
	}
	if claim.Warning != "" {
		result.Reply += " Note: " + claim.Warning + "."
	}
	return result, nil
}

// extractDocument runs the field extractor and converts extraction problems
// into user-facing replies that leave the session state unchanged.
func (e *Engine) extractDocument(ctx context.Context, doc model.Document, docType model.DocumentType) (*model.DocumentData, *TurnResult) {
	data, err := e.extractor.Extract(ctx, doc, docType)
	if err == nil {
		return data, nil
	}

	e.logger.Warn("extraction failed",
		"doc_type", docType,
		"filename", doc.Filename,
		"error", err)

	switch {
	case extract.IsIncomplete(err):
		var incomplete *extract.IncompleteError
		if errors.As(err, &incomplete) {
			return nil, &TurnResult{
				Reply: fmt.Sprintf(
					"That does not look like a readable %s document: could not read %s. Please upload the %s again.",
					docType, strings.Join(incomplete.Missing, ", "), docType),
				InputType: InputFile,
			}
		}
		return nil, &TurnResult{
			Reply:     fmt.Sprintf("I could not read the required fields from that %s. Please upload it again.", docType),
			InputType: InputFile,
		}
	case errors.Is(err, common.ErrTransport):
		return nil, transientReply()
	default:
		return nil, &TurnResult{
			Reply:     fmt.Sprintf("I could not process that document as a %s. Please upload the %s again.", docType, docType),
			InputType: InputFile,
		}
	}
}

// lookupProcedurePrice resolves the prescribed procedure through the ranked
// price sources and records AI estimates in the internal reference table.
func (e *Engine) lookupProcedurePrice(ctx context.Context, prescription *model.DocumentData) (*model.PriceLookup, error) {
	procedure := prescription.Text("procedure_name")
	if procedure == "" {
		return nil, fmt.Errorf("prescription has no procedure name")
	}

	candidate, err := e.matcher.ResolvePrice(ctx, procedure)
	if err != nil {
		return nil, fmt.Errorf("price lookup for %q: %w", procedure, common.ErrTransport)
	}

	lookup := &model.PriceLookup{
		ProcedureName: procedure,
		HospitalName:  prescription.Text("hospital_name"),
		Candidate:     candidate,
	}

	if candidate.Estimated {
		e.saveInternalPrice(ctx, candidate.MatchedName, candidate.Price, lookup.HospitalName)
	}

	return lookup, nil
}

// saveEstimatedPrices writes AI-estimated line prices back to the internal
// reference table so later lookups hit a ranked source.
func (e *Engine) saveEstimatedPrices(ctx context.Context, claim *model.ClaimResult) {
	for _, line := range claim.Lines {
		if line.PriceEstimated && line.Billed > 0 {
			e.saveInternalPrice(ctx, line.Item, line.Billed, "")
		}
	}
}

func (e *Engine) saveInternalPrice(ctx context.Context, name string, price float64, hospital string) {
	record := &model.PriceRecord{
		Name:         name,
		HospitalName: hospital,
		Price:        price,
		Source:       model.SourceInternal,
		Origin:       model.SourceAIEstimate,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.storage.SavePriceEntry(ctx, record); err != nil {
		e.logger.Warn("could not save estimated price",
			"name", name,
			"error", err)
	}
}

func (e *Engine) handleCompleted(session *model.Session) *TurnResult {
	return &TurnResult{
		Reply:       fmt.Sprintf("This assessment is complete. Type %q to start a new one.", ResetCommand),
		InputType:   InputOptions,
		Options:     []Option{{Value: ResetCommand, Label: "Start a new assessment"}},
		Claim:       session.Claim,
		PriceLookup: session.PriceLookup,
	}
}

// reprompt rebuilds the input surface for the session's current state so a
// rejected turn still tells the client what kind of input to send next.
func (e *Engine) reprompt(session *model.Session) *TurnResult {
	if session.Status == model.StatusAwaitingDocumentChoice {
		return &TurnResult{InputType: InputOptions, Options: choiceOptions()}
	}
	return &TurnResult{InputType: InputFile}
}

func choiceOptions() []Option {
	return []Option{
		{Value: string(model.ChoiceBill), Label: "Hospital bill"},
		{Value: string(model.ChoicePrescription), Label: "Prescription"},
		{Value: string(model.ChoiceBoth), Label: "Both bill and prescription"},
	}
}

func transientReply() *TurnResult {
	return &TurnResult{
		Reply:     "The document service is temporarily unavailable. Please try again in a moment.",
		InputType: InputFile,
	}
}

func formatPrice(c model.PriceCandidate) string {
	if c.Estimated {
		return fmt.Sprintf("%.2f (AI-estimated)", c.Price)
	}
	return fmt.Sprintf("%.2f (matched %q from %s)", c.Price, c.MatchedName, c.Source)
}
