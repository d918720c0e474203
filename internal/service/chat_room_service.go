package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
)

var (
	// ErrRoomNotFound indicates no room matched the identifier.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrRoomParticipantMissing indicates one of the requested participants does not exist.
	ErrRoomParticipantMissing = errors.New("room participant not found")
	// ErrDoctorNotChatable indicates the doctor is not active and verified.
	ErrDoctorNotChatable = errors.New("doctor is not available for chat")
)

// RoomService resolves rooms for patient/doctor pairs. Room creation is
// idempotent: the same pair always resolves to the same room.
type RoomService interface {
	FindOrCreate(ctx context.Context, req dto.CreateRoomRequest) (dto.CreateRoomResponse, bool, error)
	Get(ctx context.Context, roomID string) (dto.ChatRoomResponse, error)
	ListForPatient(ctx context.Context, patientUserID uint) ([]dto.ChatRoomResponse, error)
	ListForDoctor(ctx context.Context, doctorUserID uint) ([]dto.ChatRoomResponse, error)
}

type roomService struct {
	rooms     repository.ChatRoomRepository
	users     repository.UserRepository
	doctors   repository.DoctorRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomService constructs a room directory service.
func NewRoomService(rooms repository.ChatRoomRepository, users repository.UserRepository, doctors repository.DoctorRepository, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		users:     users,
		doctors:   doctors,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
	}
}

func (s *roomService) FindOrCreate(ctx context.Context, req dto.CreateRoomRequest) (dto.CreateRoomResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CreateRoomResponse{}, false, err
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CreateRoomResponse{}, false, ErrRoomParticipantMissing
		}
		return dto.CreateRoomResponse{}, false, err
	}

	if _, err := s.users.GetByIDAndRole(ctx, req.DoctorID, models.RoleDoctor); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CreateRoomResponse{}, false, ErrRoomParticipantMissing
		}
		return dto.CreateRoomResponse{}, false, err
	}

	if doctor, err := s.doctors.GetByUserID(ctx, req.DoctorID); err == nil {
		if !doctor.Chatable() {
			return dto.CreateRoomResponse{}, false, ErrDoctorNotChatable
		}
	}

	pairKey := models.PairKey(req.UserID, req.DoctorID)

	if existing, err := s.rooms.GetByPairKey(ctx, pairKey); err == nil {
		return dto.CreateRoomResponse{RoomID: existing.RoomID}, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CreateRoomResponse{}, false, err
	}

	visible, _ := json.Marshal([]uint{req.UserID, req.DoctorID})
	room := models.ChatRoom{
		RoomID:  fmt.Sprintf("room-%s", uuid.NewString()),
		PairKey: pairKey,
		Participants: []models.ChatRoomParticipant{
			{UserID: req.UserID, Role: models.RoleUser},
			{UserID: req.DoctorID, Role: models.RoleDoctor},
		},
		VisibleTo: datatypes.JSON(visible),
	}

	if err := s.rooms.Create(ctx, &room); err != nil {
		// A concurrent create for the same pair wins the unique index race;
		// resolve to whichever row landed first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, fetchErr := s.rooms.GetByPairKey(ctx, pairKey)
			if fetchErr != nil {
				return dto.CreateRoomResponse{}, false, fetchErr
			}
			return dto.CreateRoomResponse{RoomID: winner.RoomID}, false, nil
		}
		return dto.CreateRoomResponse{}, false, err
	}

	s.logger.Info().
		Str("room_id", room.RoomID).
		Uint("patient_id", req.UserID).
		Uint("doctor_id", req.DoctorID).
		Msg("chat room created")

	return dto.CreateRoomResponse{RoomID: room.RoomID}, true, nil
}

func (s *roomService) Get(ctx context.Context, roomID string) (dto.ChatRoomResponse, error) {
	room, err := s.rooms.GetByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatRoomResponse{}, ErrRoomNotFound
		}
		return dto.ChatRoomResponse{}, err
	}
	return dto.NewChatRoomResponse(room), nil
}

func (s *roomService) ListForPatient(ctx context.Context, patientUserID uint) ([]dto.ChatRoomResponse, error) {
	if _, err := s.users.GetByIDAndRole(ctx, patientUserID, models.RoleUser); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomParticipantMissing
		}
		return nil, err
	}

	rooms, err := s.rooms.ListForParticipant(ctx, patientUserID, models.RoleUser, models.RoleDoctor)
	if err != nil {
		return nil, err
	}
	return dto.NewChatRoomResponseSlice(rooms), nil
}

func (s *roomService) ListForDoctor(ctx context.Context, doctorUserID uint) ([]dto.ChatRoomResponse, error) {
	if _, err := s.users.GetByIDAndRole(ctx, doctorUserID, models.RoleDoctor); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomParticipantMissing
		}
		return nil, err
	}

	rooms, err := s.rooms.ListForParticipant(ctx, doctorUserID, models.RoleDoctor, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return dto.NewChatRoomResponseSlice(rooms), nil
}
