// Package relay accepts signed tip authorizations and submits them to the
// escrow with the relayer credential. A request passes through validation,
// rate limiting, signature recovery, submission and a bounded confirmation
// wait, and every outcome lands in the request log.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"tipjar/internal/eip712"
	"tipjar/internal/escrow"
	"tipjar/internal/logging"
	"tipjar/internal/ratelimit"
)

// Result is the payload of a successful relay.
type Result struct {
	Fan              string   `json:"fan"`
	Creator          string   `json:"creator"`
	Amount           string   `json:"amount"`
	Nonce            *big.Int `json:"nonce"`
	TransactionHash  string   `json:"transactionHash"`
	Status           TxStatus `json:"status"`
	RecoveredAddress string   `json:"recoveredAddress"`
}

// Observer receives relay outcomes, typically for metrics.
type Observer interface {
	ObserveRelay(outcome string, elapsed time.Duration)
	ObserveRateLimited(scope ratelimit.Scope)
	ObserveConfirmation(status TxStatus)
}

// OutcomeSuccess is the outcome label for a relayed tip.
const OutcomeSuccess = "SUCCESS"

type nopObserver struct{}

func (nopObserver) ObserveRelay(string, time.Duration) {}
func (nopObserver) ObserveRateLimited(ratelimit.Scope) {}
func (nopObserver) ObserveConfirmation(TxStatus)       {}

type Deps struct {
	Validator *Validator
	Limiter   *ratelimit.Limiter
	Verifier  *eip712.Verifier
	Client    escrow.Client
	Watcher   *Watcher
	Log       *RequestLog
	Logger    logging.Logger
	Observer  Observer
}

type Service struct {
	validator *Validator
	limiter   *ratelimit.Limiter
	verifier  *eip712.Verifier
	client    escrow.Client
	watcher   *Watcher
	log       *RequestLog
	logger    logging.Logger
	observer  Observer
	now       func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Limiter == nil || d.Verifier == nil || d.Client == nil || d.Watcher == nil {
		return nil, fmt.Errorf("relay service requires limiter, verifier, client and watcher")
	}
	if d.Validator == nil {
		d.Validator = NewValidator(DefaultAmountPolicy())
	}
	if d.Log == nil {
		d.Log = NewRequestLog(DefaultRequestLogSize)
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	s := &Service{
		validator: d.Validator,
		limiter:   d.Limiter,
		verifier:  d.Verifier,
		client:    d.Client,
		watcher:   d.Watcher,
		log:       d.Log,
		logger:    logging.ForComponent(d.Logger, logging.ComponentRelay),
		observer:  d.Observer,
		now:       time.Now,
	}
	d.Watcher.OnSettled(s.observer.ObserveConfirmation)
	return s, nil
}

// Relay processes one tip request body from clientIP.
func (s *Service) Relay(ctx context.Context, clientIP string, body []byte) (*Result, *Error) {
	start := s.now()
	entry := LogEntry{Timestamp: start, IP: clientIP}

	s.limiter.Sweep(ctx)

	req, rerr := s.validator.Decode(body)
	if rerr != nil {
		return nil, s.fail(entry, start, rerr)
	}
	entry.Fan, entry.Creator, entry.Amount = req.FanText, req.CreatorText, req.AmountText

	if d := s.limiter.AllowIP(ctx, clientIP); !d.Allowed {
		s.observer.ObserveRateLimited(ratelimit.ScopeIP)
		rerr = NewError(CodeRateLimitExceeded, fmt.Errorf("ip %s over limit", clientIP)).
			withMessage(fmt.Sprintf("Too many requests from this IP. Maximum %d requests per minute allowed.", s.limiter.PerIP()))
		rerr.RetryAfter = d.RetryAfter
		return nil, s.fail(entry, start, rerr)
	}
	if d := s.limiter.AllowFan(ctx, req.FanText); !d.Allowed {
		s.observer.ObserveRateLimited(ratelimit.ScopeFan)
		rerr = NewError(CodeRateLimitExceeded, fmt.Errorf("fan %s over limit", req.FanText)).
			withMessage(fmt.Sprintf("Too many requests from this fan address. Maximum %d requests per minute allowed.", s.limiter.PerFan()))
		rerr.RetryAfter = d.RetryAfter
		return nil, s.fail(entry, start, rerr)
	}

	wei, rerr := s.validator.Wei(req)
	if rerr != nil {
		return nil, s.fail(entry, start, rerr)
	}

	msg := eip712.TipMessage{Fan: req.Fan, Creator: req.Creator, Amount: wei, Nonce: req.Nonce}
	signer, err := s.verifier.Verify(msg, req.Signature)
	if err != nil {
		if errors.Is(err, eip712.ErrSignerMismatch) {
			return nil, s.fail(entry, start, NewError(CodeSignatureMismatch, err))
		}
		return nil, s.fail(entry, start, NewError(CodeInvalidSignature, err))
	}

	sub, err := s.client.SubmitTip(ctx, escrow.TipCall{
		Fan:       req.Fan,
		Creator:   req.Creator,
		Amount:    wei,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
	if err != nil {
		return nil, s.fail(entry, start, classifySubmitError(err))
	}

	status := s.watcher.Await(ctx, sub.TxHash)

	entry.Success = true
	entry.TxHash = sub.TxHash.Hex()
	s.record(entry, nil)
	s.observer.ObserveRelay(OutcomeSuccess, s.now().Sub(start))

	return &Result{
		Fan:              req.FanText,
		Creator:          req.CreatorText,
		Amount:           req.AmountText,
		Nonce:            req.Nonce,
		TransactionHash:  sub.TxHash.Hex(),
		Status:           status,
		RecoveredAddress: signer.Hex(),
	}, nil
}

// Reject records a request from clientIP that was refused before its body
// reached Relay, such as an unreadable body or a wrong method.
func (s *Service) Reject(clientIP string, rerr *Error) *Error {
	start := s.now()
	return s.fail(LogEntry{Timestamp: start, IP: clientIP}, start, rerr)
}

func (s *Service) fail(entry LogEntry, start time.Time, rerr *Error) *Error {
	entry.Error = rerr.Code.String()
	s.record(entry, rerr)
	s.observer.ObserveRelay(rerr.Code.String(), s.now().Sub(start))
	return rerr
}

func (s *Service) record(entry LogEntry, rerr *Error) {
	s.log.Append(entry)

	var ev *zerolog.Event
	switch {
	case rerr == nil:
		ev = s.logger.Info()
	case rerr.Code.HTTPStatus() >= 500:
		ev = s.logger.Error().Err(rerr)
	default:
		ev = s.logger.Warn().Err(rerr)
	}
	ev = ev.
		Time("requested_at", entry.Timestamp).
		Str(logging.FieldClientIP, entry.IP).
		Str(logging.FieldFan, entry.Fan).
		Str(logging.FieldCreator, entry.Creator).
		Str(logging.FieldAmount, entry.Amount).
		Bool(logging.FieldSuccess, entry.Success)
	if rerr != nil {
		ev = ev.Str(logging.FieldCode, rerr.Code.String())
		if rerr.Details != "" {
			ev = ev.Str(logging.FieldDetails, rerr.Details)
		}
		ev.Msg("tip relay failed")
		return
	}
	ev.Str(logging.FieldTxHash, entry.TxHash).Msg("tip relayed")
}

// Nonce reads the next nonce the escrow expects from fan.
func (s *Service) Nonce(ctx context.Context, fan string) (*big.Int, *Error) {
	if !validAddress(fan) {
		return nil, NewError(CodeInvalidFanAddress, fmt.Errorf("fan %q", fan))
	}
	n, err := s.client.Nonce(ctx, common.HexToAddress(fan))
	if err != nil {
		s.logger.Error().Err(err).Str(logging.FieldFan, lowerHex(common.HexToAddress(fan))).Msg("nonce lookup failed")
		return nil, NewError(CodeInternal, err)
	}
	return n, nil
}

// Requests returns the retained request log.
func (s *Service) Requests() []LogEntry {
	return s.log.Snapshot()
}

func (s *Service) Limiter() *ratelimit.Limiter {
	return s.limiter
}

func (s *Service) Close() {
	s.watcher.Stop()
}
