package tokens

import (
	"errors"
	"fmt"

	"relief-tokens/internal/logger"
	"relief-tokens/internal/models"
	"relief-tokens/internal/tokens/codegen"
	"relief-tokens/internal/tokens/db"
)

// ErrEventClosed is returned when a redemption is attempted against a closed
// event. The store itself stays permissive; the gate lives here.
var ErrEventClosed = errors.New("event is closed")

type TokenDBLayer interface {
	CheckIn(code string, actorID *string, details string) (*models.Token, error)
	ManualCheckIn(code string, performedBy *string, details string) (*models.Token, error)
	UndoCheckIn(code string, performedBy *string, details string) (*models.Token, error)
	Reissue(code string, performedBy *string, gen db.CodeFunc, details string) (*models.Token, []models.Token, error)
	IssueToken(eventID, houseID int64, gen db.CodeFunc) (*models.Token, error)
	GetTokenByCode(code string) (*models.TokenWithHouse, error)
	GetEventByID(id int64) (*models.Event, error)
	ListTokens(eventID *int64, limit, offset int) ([]models.TokenWithHouse, error)
	AuditForToken(tokenID int64) ([]models.TokenAudit, error)
}

// ArtifactRenderer renders and deletes per-token QR artifacts. Both are
// best-effort: failures are logged and never fail the lifecycle operation.
type ArtifactRenderer interface {
	Render(tokenCode string) error
	Delete(tokenCode string) error
}

// LifecyclePublisher streams lifecycle events out of process (Kafka).
// Publish failures are logged, never surfaced.
type LifecyclePublisher interface {
	PublishTokenCheckedIn(token models.Token) error
	PublishTokenUndone(token models.Token) error
	PublishTokenReissued(newToken models.Token, revoked []models.Token) error
}

// ArtifactResult reports the best-effort cleanup of one superseded artifact.
type ArtifactResult struct {
	TokenCode string `json:"token_code"`
	Deleted   bool   `json:"deleted"`
	Reason    string `json:"reason,omitempty"`
}

// ReissueResult is the full outcome of a reissue: the replacement token, the
// revoked siblings, and what happened to their artifacts.
type ReissueResult struct {
	NewToken      *models.Token    `json:"new_token"`
	RevokedTokens []models.Token   `json:"revoked_tokens"`
	DeletedFiles  []ArtifactResult `json:"deleted_files"`
}

// TokenService is the token lifecycle engine. All state transitions go
// through here and nowhere else; the store executes each one as a single
// conditional-update transaction.
type TokenService struct {
	DB     TokenDBLayer
	Codes  *codegen.Generator
	QR     ArtifactRenderer
	Kafka  LifecyclePublisher
	Logger *logger.Logger
}

func NewTokenService(dbLayer TokenDBLayer, codes *codegen.Generator, renderer ArtifactRenderer, publisher LifecyclePublisher, log *logger.Logger) *TokenService {
	return &TokenService{DB: dbLayer, Codes: codes, QR: renderer, Kafka: publisher, Logger: log}
}

// GetToken returns the token with its event and household context.
func (s *TokenService) GetToken(code string) (*models.TokenWithHouse, error) {
	return s.DB.GetTokenByCode(code)
}

// ListTokens returns the admin token listing.
func (s *TokenService) ListTokens(eventID *int64, limit, offset int) ([]models.TokenWithHouse, error) {
	return s.DB.ListTokens(eventID, limit, offset)
}

// AuditTrail returns the append-only history for a token code.
func (s *TokenService) AuditTrail(code string) ([]models.TokenAudit, error) {
	token, err := s.DB.GetTokenByCode(code)
	if err != nil {
		return nil, err
	}
	return s.DB.AuditForToken(token.ID)
}

// CheckIn redeems a token from the public scanner path. The actor is
// optional; when present it is recorded on the token and in the audit trail.
func (s *TokenService) CheckIn(code string, actorID *string, details string) (*models.Token, error) {
	if err := s.requireOpenEvent(code); err != nil {
		return nil, err
	}
	token, err := s.DB.CheckIn(code, actorID, details)
	if err != nil {
		return nil, err
	}
	s.logToken("CHECKIN", token.TokenCode, "token redeemed")
	if s.Kafka != nil {
		if err := s.Kafka.PublishTokenCheckedIn(*token); err != nil {
			s.logError("KAFKA", fmt.Sprintf("publish checked_in for %s: %v", token.TokenCode, err))
		}
	}
	return token, nil
}

// ManualCheckIn redeems a token on behalf of an admin caller.
func (s *TokenService) ManualCheckIn(code string, callerID string, details string) (*models.Token, error) {
	if err := s.requireOpenEvent(code); err != nil {
		return nil, err
	}
	token, err := s.DB.ManualCheckIn(code, &callerID, details)
	if err != nil {
		return nil, err
	}
	s.logToken("MANUAL_CHECKIN", token.TokenCode, "token redeemed by "+callerID)
	if s.Kafka != nil {
		if err := s.Kafka.PublishTokenCheckedIn(*token); err != nil {
			s.logError("KAFKA", fmt.Sprintf("publish manual_checkin for %s: %v", token.TokenCode, err))
		}
	}
	return token, nil
}

// UndoCheckIn reverses a redemption. The token re-enters the active pool and
// can be redeemed again.
func (s *TokenService) UndoCheckIn(code string, callerID string, details string) (*models.Token, error) {
	token, err := s.DB.UndoCheckIn(code, &callerID, details)
	if err != nil {
		return nil, err
	}
	s.logToken("UNDO_CHECKIN", token.TokenCode, "redemption reversed by "+callerID)
	if s.Kafka != nil {
		if err := s.Kafka.PublishTokenUndone(*token); err != nil {
			s.logError("KAFKA", fmt.Sprintf("publish undo_checkin for %s: %v", token.TokenCode, err))
		}
	}
	return token, nil
}

// Reissue replaces a household's token within an event. After the
// transaction commits, the new artifact is rendered and artifacts of revoked
// tokens are deleted, both best-effort.
func (s *TokenService) Reissue(code string, callerID string, details string) (*ReissueResult, error) {
	newToken, revoked, err := s.DB.Reissue(code, &callerID, s.Codes.NewCode, details)
	if err != nil {
		return nil, err
	}
	s.logToken("REISSUE", code, fmt.Sprintf("replaced by %s, %d revoked", newToken.TokenCode, len(revoked)))

	result := &ReissueResult{NewToken: newToken, RevokedTokens: revoked}
	if s.QR != nil {
		if err := s.QR.Render(newToken.TokenCode); err != nil {
			s.logError("QR", fmt.Sprintf("render %s: %v", newToken.TokenCode, err))
		}
		for _, r := range revoked {
			res := ArtifactResult{TokenCode: r.TokenCode, Deleted: true}
			if err := s.QR.Delete(r.TokenCode); err != nil {
				res.Deleted = false
				res.Reason = err.Error()
				s.logError("QR", fmt.Sprintf("delete %s: %v", r.TokenCode, err))
			}
			result.DeletedFiles = append(result.DeletedFiles, res)
		}
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishTokenReissued(*newToken, revoked); err != nil {
			s.logError("KAFKA", fmt.Sprintf("publish reissue for %s: %v", newToken.TokenCode, err))
		}
	}
	return result, nil
}

// Issue creates the initial active token for a household within an event and
// renders its artifact best-effort. This is the creation path used by event
// issuance, distinct from the four transitions.
func (s *TokenService) Issue(eventID, houseID int64) (*models.Token, error) {
	token, err := s.DB.IssueToken(eventID, houseID, s.Codes.NewCode)
	if err != nil {
		return nil, err
	}
	if s.QR != nil {
		if err := s.QR.Render(token.TokenCode); err != nil {
			s.logError("QR", fmt.Sprintf("render %s: %v", token.TokenCode, err))
		}
	}
	return token, nil
}

// requireOpenEvent rejects redemption against closed events. Unknown tokens
// fall through so the store reports NotFound from inside the transaction.
func (s *TokenService) requireOpenEvent(code string) error {
	token, err := s.DB.GetTokenByCode(code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return err
	}
	event, err := s.DB.GetEventByID(token.EventID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return err
	}
	if event.Status == models.EventClosed {
		return ErrEventClosed
	}
	return nil
}

func (s *TokenService) logToken(action, code, message string) {
	if s.Logger != nil {
		s.Logger.LogToken(action, code, message)
	}
}

func (s *TokenService) logError(category, message string) {
	if s.Logger != nil {
		s.Logger.Error(category, message)
	}
}
