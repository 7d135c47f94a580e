package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

// Stage is the guided flow's current step.
type Stage string

const (
	StageHost Stage = "host"
	StageCode Stage = "code"
	StageMap  Stage = "map"
	StageMode Stage = "mode"
)

// Control inputs recognized at every stage.
const (
	InputBack   = "/back"
	InputCancel = "/cancel"
)

// FlowKind separates creating a new room from editing an existing one.
type FlowKind string

const (
	FlowCreate FlowKind = "create"
	FlowEdit   FlowKind = "edit"
)

type draft struct {
	host    string
	code    string
	mapName string
	mode    string
}

// Conversation is one caller's in-progress guided flow. It is owned by
// the session registry for the duration of the flow and never
// persisted.
type Conversation struct {
	Caller    domain.OwnerID
	Kind      FlowKind
	Stage     Stage
	EditCode  domain.RoomCode
	draft     draft
	UpdatedAt time.Time
}

// Step is the FSM's answer to one input: either the next prompt (with
// an optional validation diagnostic for a same-stage retry), a
// committed room, or a cancellation.
type Step struct {
	Stage     Stage        `json:"stage,omitempty"`
	Prompt    string       `json:"prompt,omitempty"`
	Options   []string     `json:"options,omitempty"`
	Diag      string       `json:"diagnostic,omitempty"`
	Committed *domain.Room `json:"committed,omitempty"`
	Cancelled bool         `json:"cancelled,omitempty"`
}

// StartCreate begins a guided creation for the caller, replacing any
// flow already in progress. Under one-room-per-owner the existing room
// is surfaced instead of starting a flow.
func (s *Service) StartCreate(caller domain.OwnerID) (Step, error) {
	if s.opts.OnePerOwner {
		if existing, ok := s.store.FindByOwner(caller); ok {
			return Step{}, fmt.Errorf("%w: %s", domain.ErrOwnerHasRoom, existing.Code)
		}
	}
	conv := &Conversation{Caller: caller, Kind: FlowCreate, Stage: StageHost}
	s.flows.put(conv)
	log.Info().Str("module", "app.flow").Str("caller", string(caller)).Msg("creation flow started")
	return s.prompt(conv, ""), nil
}

// StartEdit begins a guided edit of an existing room's map and mode.
// Only the owner may edit; the flow reuses the map and mode stages.
func (s *Service) StartEdit(caller domain.OwnerID, code string) (Step, error) {
	room, ok := s.store.Get(domain.RoomCode(code))
	if !ok {
		return Step{}, domain.ErrNotFound
	}
	if room.OwnerID != caller {
		return Step{}, domain.ErrForbidden
	}
	conv := &Conversation{Caller: caller, Kind: FlowEdit, Stage: StageMap, EditCode: room.Code}
	s.flows.put(conv)
	log.Info().Str("module", "app.flow").Str("caller", string(caller)).Str("code", code).Msg("edit flow started")
	return s.prompt(conv, ""), nil
}

// Advance feeds one raw input to the caller's flow and returns the
// next step. ErrNoActiveFlow when no flow is in progress (or the old
// one idled out).
func (s *Service) Advance(caller domain.OwnerID, input string) (Step, error) {
	conv, ok := s.flows.get(caller)
	if !ok {
		return Step{}, domain.ErrNoActiveFlow
	}
	input = strings.TrimSpace(input)

	switch input {
	case InputCancel:
		s.flows.remove(caller)
		log.Info().Str("module", "app.flow").Str("caller", string(caller)).Msg("flow cancelled")
		return Step{Cancelled: true}, nil
	case InputBack:
		return s.back(conv), nil
	}

	switch conv.Stage {
	case StageHost:
		if err := s.opts.Rules.ValidateHost(input); err != nil {
			return s.prompt(conv, err.Error()), nil
		}
		conv.draft.host = strings.TrimSpace(input)
		conv.Stage = StageCode
		return s.prompt(conv, ""), nil

	case StageCode:
		code := strings.ToUpper(input)
		if err := s.opts.Rules.ValidateCode(code); err != nil {
			return s.prompt(conv, err.Error()), nil
		}
		if _, exists := s.store.Get(domain.RoomCode(code)); exists {
			return s.prompt(conv, domain.ErrCodeTaken.Error()), nil
		}
		conv.draft.code = code
		conv.Stage = StageMap
		return s.prompt(conv, ""), nil

	case StageMap:
		if err := s.opts.Rules.ValidateMap(input); err != nil {
			return s.prompt(conv, err.Error()), nil
		}
		conv.draft.mapName = input
		conv.Stage = StageMode
		return s.prompt(conv, ""), nil

	case StageMode:
		if err := s.opts.Rules.ValidateMode(input); err != nil {
			return s.prompt(conv, err.Error()), nil
		}
		conv.draft.mode = input
		return s.commit(conv)
	}

	return Step{}, domain.ErrNoActiveFlow
}

// CancelFlow discards the caller's flow, if any.
func (s *Service) CancelFlow(caller domain.OwnerID) bool {
	return s.flows.remove(caller)
}

// commit submits the finished draft. A code claimed by a racing flow
// between validation and commit sends the machine back to the code
// stage rather than overwriting.
func (s *Service) commit(conv *Conversation) (Step, error) {
	switch conv.Kind {
	case FlowEdit:
		patch := domain.RoomPatch{Map: &conv.draft.mapName, Mode: &conv.draft.mode}
		room, err := s.EditRoom(string(conv.EditCode), conv.Caller, patch)
		if err != nil {
			s.flows.remove(conv.Caller)
			return Step{}, err
		}
		s.flows.remove(conv.Caller)
		return Step{Committed: &room}, nil

	default:
		room, err := s.CreateRoom(conv.Caller, conv.draft.host, conv.draft.code, conv.draft.mapName, conv.draft.mode)
		if errors.Is(err, domain.ErrCodeTaken) {
			conv.Stage = StageCode
			conv.draft.code = ""
			conv.draft.mode = ""
			return s.prompt(conv, err.Error()), nil
		}
		if err != nil {
			s.flows.remove(conv.Caller)
			return Step{}, err
		}
		s.flows.remove(conv.Caller)
		log.Info().Str("module", "app.flow").Str("caller", string(conv.Caller)).Str("code", string(room.Code)).Msg("flow committed")
		return Step{Committed: &room}, nil
	}
}

// back steps to the previous stage without discarding anything already
// collected. The first stage of a flow just re-prompts.
func (s *Service) back(conv *Conversation) Step {
	switch conv.Stage {
	case StageCode:
		conv.Stage = StageHost
	case StageMap:
		if conv.Kind == FlowCreate {
			conv.Stage = StageCode
		}
	case StageMode:
		conv.Stage = StageMap
	}
	return s.prompt(conv, "")
}

func (s *Service) prompt(conv *Conversation, diag string) Step {
	step := Step{Stage: conv.Stage, Diag: diag}
	switch conv.Stage {
	case StageHost:
		step.Prompt = "Enter the host name"
	case StageCode:
		step.Prompt = fmt.Sprintf("Enter the room code (%d uppercase letters), e.g. %s", s.opts.Rules.CodeLength, s.SuggestCode())
	case StageMap:
		step.Prompt = "Pick a map"
		step.Options = s.opts.Rules.Maps
	case StageMode:
		step.Prompt = "Pick a mode"
		step.Options = s.opts.Rules.Modes
	}
	return step
}
