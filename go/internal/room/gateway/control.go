package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
)

// RoomControlServiceName is the fully-qualified name of the control service.
const RoomControlServiceName = "watchroom.v1.RoomControlService"

// Procedure paths of the control service
const (
	LoadVideoProcedure    = "/" + RoomControlServiceName + "/LoadVideo"
	CloseVideoProcedure   = "/" + RoomControlServiceName + "/CloseVideo"
	SetPausedProcedure    = "/" + RoomControlServiceName + "/SetPaused"
	SeekProcedure         = "/" + RoomControlServiceName + "/Seek"
	RestartVideoProcedure = "/" + RoomControlServiceName + "/RestartVideo"
	SetVolumeProcedure    = "/" + RoomControlServiceName + "/SetVolume"
	HardReloadProcedure   = "/" + RoomControlServiceName + "/HardReload"
	GetMediaInfoProcedure = "/" + RoomControlServiceName + "/GetMediaInfo"
)

type LoadVideoRequest struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

type SeekRequest struct {
	Timestamp float64 `json:"timestamp"`
}

// SetVolumeRequest carries a level in [0, 1]
type SetVolumeRequest struct {
	Level float64 `json:"level"`
}

type Empty struct{}

type MediaInfoResponse struct {
	MediaInfo models.MediaInfo `json:"media_info"`
}

// jsonCodec lets connect carry plain Go structs as JSON.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// RoomExecutor runs fn on the room's coordinator goroutine.
type RoomExecutor interface {
	Do(ctx context.Context, fn func(*coordinator.Coordinator) error) error
}

// ControlService implements the room control API
type ControlService struct {
	room RoomExecutor
}

// NewControlService creates a control service driving room
func NewControlService(room RoomExecutor) *ControlService {
	return &ControlService{room: room}
}

// LoadVideo starts loading a new video
func (s *ControlService) LoadVideo(ctx context.Context, req *connect.Request[LoadVideoRequest]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.LoadVideo(req.Msg.ID, req.Msg.Timestamp)
	})
	return emptyResponse(err)
}

// CloseVideo closes the current video
func (s *ControlService) CloseVideo(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		c.CloseVideo()
		return nil
	})
	return emptyResponse(err)
}

// SetPaused pauses or resumes playback
func (s *ControlService) SetPaused(ctx context.Context, req *connect.Request[SetPausedRequest]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.SetPaused(req.Msg.Paused)
	})
	return emptyResponse(err)
}

// Seek moves playback to a timestamp
func (s *ControlService) Seek(ctx context.Context, req *connect.Request[SeekRequest]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.Seek(req.Msg.Timestamp)
	})
	return emptyResponse(err)
}

// RestartVideo seeks to the beginning
func (s *ControlService) RestartVideo(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.Restart()
	})
	return emptyResponse(err)
}

// SetVolume sets the room volume
func (s *ControlService) SetVolume(ctx context.Context, req *connect.Request[SetVolumeRequest]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.SetVolume(req.Msg.Level)
	})
	return emptyResponse(err)
}

// HardReload reloads every participant at the current position
func (s *ControlService) HardReload(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[Empty], error) {
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		return c.HardReload()
	})
	return emptyResponse(err)
}

// GetMediaInfo returns the current playback snapshot
func (s *ControlService) GetMediaInfo(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[MediaInfoResponse], error) {
	var info models.MediaInfo
	err := s.room.Do(ctx, func(c *coordinator.Coordinator) error {
		info = c.MediaInfo()
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MediaInfoResponse{MediaInfo: info}), nil
}

func emptyResponse(err error) (*connect.Response[Empty], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, coordinator.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, coordinator.ErrNoContent):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, coordinator.ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewControlServiceHandler builds an HTTP handler serving every control
// procedure. It returns the path to mount it on.
func NewControlServiceHandler(svc *ControlService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(LoadVideoProcedure, connect.NewUnaryHandler(LoadVideoProcedure, svc.LoadVideo, opts...))
	mux.Handle(CloseVideoProcedure, connect.NewUnaryHandler(CloseVideoProcedure, svc.CloseVideo, opts...))
	mux.Handle(SetPausedProcedure, connect.NewUnaryHandler(SetPausedProcedure, svc.SetPaused, opts...))
	mux.Handle(SeekProcedure, connect.NewUnaryHandler(SeekProcedure, svc.Seek, opts...))
	mux.Handle(RestartVideoProcedure, connect.NewUnaryHandler(RestartVideoProcedure, svc.RestartVideo, opts...))
	mux.Handle(SetVolumeProcedure, connect.NewUnaryHandler(SetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(HardReloadProcedure, connect.NewUnaryHandler(HardReloadProcedure, svc.HardReload, opts...))
	mux.Handle(GetMediaInfoProcedure, connect.NewUnaryHandler(GetMediaInfoProcedure, svc.GetMediaInfo, opts...))

	return "/" + RoomControlServiceName + "/", mux
}

// ControlClient calls the control API of a room host
type ControlClient struct {
	loadVideo    *connect.Client[LoadVideoRequest, Empty]
	closeVideo   *connect.Client[Empty, Empty]
	setPaused    *connect.Client[SetPausedRequest, Empty]
	seek         *connect.Client[SeekRequest, Empty]
	restartVideo *connect.Client[Empty, Empty]
	setVolume    *connect.Client[SetVolumeRequest, Empty]
	hardReload   *connect.Client[Empty, Empty]
	getMediaInfo *connect.Client[Empty, MediaInfoResponse]
}

// NewControlClient creates a client for the host at baseURL
func NewControlClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ControlClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &ControlClient{
		loadVideo:    connect.NewClient[LoadVideoRequest, Empty](httpClient, baseURL+LoadVideoProcedure, opts...),
		closeVideo:   connect.NewClient[Empty, Empty](httpClient, baseURL+CloseVideoProcedure, opts...),
		setPaused:    connect.NewClient[SetPausedRequest, Empty](httpClient, baseURL+SetPausedProcedure, opts...),
		seek:         connect.NewClient[SeekRequest, Empty](httpClient, baseURL+SeekProcedure, opts...),
		restartVideo: connect.NewClient[Empty, Empty](httpClient, baseURL+RestartVideoProcedure, opts...),
		setVolume:    connect.NewClient[SetVolumeRequest, Empty](httpClient, baseURL+SetVolumeProcedure, opts...),
		hardReload:   connect.NewClient[Empty, Empty](httpClient, baseURL+HardReloadProcedure, opts...),
		getMediaInfo: connect.NewClient[Empty, MediaInfoResponse](httpClient, baseURL+GetMediaInfoProcedure, opts...),
	}
}

func (c *ControlClient) LoadVideo(ctx context.Context, id string, timestamp float64) error {
	_, err := c.loadVideo.CallUnary(ctx, connect.NewRequest(&LoadVideoRequest{ID: id, Timestamp: timestamp}))
	return err
}

func (c *ControlClient) CloseVideo(ctx context.Context) error {
	_, err := c.closeVideo.CallUnary(ctx, connect.NewRequest(&Empty{}))
	return err
}

func (c *ControlClient) SetPaused(ctx context.Context, paused bool) error {
	_, err := c.setPaused.CallUnary(ctx, connect.NewRequest(&SetPausedRequest{Paused: paused}))
	return err
}

func (c *ControlClient) Seek(ctx context.Context, timestamp float64) error {
	_, err := c.seek.CallUnary(ctx, connect.NewRequest(&SeekRequest{Timestamp: timestamp}))
	return err
}

func (c *ControlClient) RestartVideo(ctx context.Context) error {
	_, err := c.restartVideo.CallUnary(ctx, connect.NewRequest(&Empty{}))
	return err
}

func (c *ControlClient) SetVolume(ctx context.Context, level float64) error {
	_, err := c.setVolume.CallUnary(ctx, connect.NewRequest(&SetVolumeRequest{Level: level}))
	return err
}

func (c *ControlClient) HardReload(ctx context.Context) error {
	_, err := c.hardReload.CallUnary(ctx, connect.NewRequest(&Empty{}))
	return err
}

func (c *ControlClient) GetMediaInfo(ctx context.Context) (models.MediaInfo, error) {
	res, err := c.getMediaInfo.CallUnary(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return models.MediaInfo{}, err
	}
	return res.Msg.MediaInfo, nil
}
