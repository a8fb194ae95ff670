package iso8583

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alovak/mini-authorizer/authorizer/models"
	"github.com/alovak/mini-authorizer/internal/pan"
	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

type authorizer interface {
	Authorize(ctx context.Context, req models.AuthorizationRequest) error
}

// Server accepts 0100 authorization requests over TCP and answers with 0110.
type Server struct {
	Addr       string
	logger     *slog.Logger
	authorizer authorizer
	timeout    time.Duration
	server     *server.Server
}

func NewServer(logger *slog.Logger, addr string, authorizer authorizer) *Server {
	return &Server{
		Addr:       addr,
		logger:     logger.With(slog.String("component", "iso8583")),
		authorizer: authorizer,
		timeout:    5 * time.Second,
	}
}

func (s *Server) Start() error {
	srv := server.New(spec, ReadMessageLength, WriteMessageLength,
		connection.InboundMessageHandler(s.handleMessage),
		connection.ErrorHandler(func(err error) {
			s.logger.Error("iso8583 connection error", "err", err)
		}),
	)

	if err := srv.Start(s.Addr); err != nil {
		return fmt.Errorf("starting iso8583 server: %w", err)
	}

	s.Addr = srv.Addr
	s.server = srv
	s.logger.Info("iso8583 server started", slog.String("addr", s.Addr))

	return nil
}

func (s *Server) Close() error {
	if s.server != nil {
		s.server.Close()
	}
	return nil
}

func (s *Server) handleMessage(c *connection.Connection, message *iso8583.Message) {
	mti, err := message.GetMTI()
	if err != nil {
		s.logger.Error("reading mti", "err", err)
		return
	}
	if mti != mtiAuthorizationRequest {
		s.logger.Info("unsupported message", slog.String("mti", mti))
		return
	}

	response := iso8583.NewMessage(spec)
	response.MTI(mtiAuthorizationResponse)

	// without a STAN the reply cannot be matched, but still carries code 30
	if message.Bitmap().IsSet(11) {
		stan, err := message.GetString(11)
		if err != nil {
			s.logger.Error("reading stan", "err", err)
			return
		}
		if err := response.Field(11, stan); err != nil {
			s.logger.Error("setting stan", "err", err)
			return
		}
	}

	code := s.authorize(message)
	if err := response.Field(39, code); err != nil {
		s.logger.Error("setting response code", "err", err)
		return
	}

	if err := c.Reply(response); err != nil {
		s.logger.Error("replying to authorization request", "err", err)
	}
}

func (s *Server) authorize(message *iso8583.Message) string {
	req, err := decodeAuthorizationRequest(message)
	if err != nil {
		s.logger.Info("malformed authorization request", "err", err)
		return codeFormatError
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err = s.authorizer.Authorize(ctx, req)
	code := responseCode(err)
	if code == codeSystemError {
		s.logger.Error("authorizing", "err", err, slog.String("card", pan.Mask(req.CardNumber)))
	}
	return code
}

// requiredFields must be present in every authorization request. Unset
// fields read back as zero values, so presence is taken from the bitmap.
var requiredFields = []int{2, 4, 11, 48}

func decodeAuthorizationRequest(message *iso8583.Message) (models.AuthorizationRequest, error) {
	for _, id := range requiredFields {
		if !message.Bitmap().IsSet(id) {
			return models.AuthorizationRequest{}, fmt.Errorf("missing field %d", id)
		}
	}
	number, err := message.GetString(2)
	if err != nil {
		return models.AuthorizationRequest{}, fmt.Errorf("reading pan: %w", err)
	}
	password, err := message.GetString(48)
	if err != nil {
		return models.AuthorizationRequest{}, fmt.Errorf("reading password: %w", err)
	}
	rawAmount, err := message.GetString(4)
	if err != nil {
		return models.AuthorizationRequest{}, fmt.Errorf("reading amount: %w", err)
	}
	minor, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return models.AuthorizationRequest{}, fmt.Errorf("parsing amount %q: %w", rawAmount, err)
	}
	return models.AuthorizationRequest{
		CardNumber: number,
		Password:   password,
		// field 4 carries minor units
		Amount: decimal.New(minor, -2),
	}, nil
}

func responseCode(err error) string {
	switch {
	case err == nil:
		return codeApproved
	case errors.Is(err, models.ErrCardNotFound):
		return codeCardNotFound
	case errors.Is(err, models.ErrInvalidPassword):
		return codeInvalidPassword
	case errors.Is(err, models.ErrInsufficientBalance):
		return codeInsufficientBalance
	case errors.Is(err, models.ErrInvalidAmount):
		return codeInvalidAmount
	default:
		return codeSystemError
	}
}
