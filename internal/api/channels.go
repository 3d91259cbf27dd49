package api

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/FynnleyNeko/DroolonStreamer/internal/api/models"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics"
)

func (s *Server) registerChannelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-channels",
		Method:      http.MethodGet,
		Path:        "/api/channels",
		Summary:     "List channels",
		Description: "State, status text and counters of every configured channel",
		Tags:        []string{"channels"},
	}, func(_ context.Context, _ *struct{}) (*models.ChannelListResponse, error) {
		list := make([]models.ChannelData, 0, len(s.options.Channels))
		for _, ch := range s.options.Channels {
			list = append(list, s.channelData(ch))
		}
		slices.SortFunc(list, func(a, b models.ChannelData) int { return strings.Compare(a.Name, b.Name) })
		return &models.ChannelListResponse{
			Body: models.ChannelListData{Channels: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-channel",
		Method:      http.MethodGet,
		Path:        "/api/channels/{name}",
		Summary:     "Get channel",
		Tags:        []string{"channels"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.ChannelRequest) (*models.ChannelResponse, error) {
		ch, ok := s.channels[input.Name]
		if !ok {
			return nil, huma.Error404NotFound("channel not found: " + input.Name)
		}
		return &models.ChannelResponse{Body: s.channelData(ch)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-channel-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/channels/{name}/snapshot",
		Summary:     "Channel snapshot",
		Description: "The latest published frame of the channel as a single JPEG",
		Tags:        []string{"channels"},
		Errors:      []int{404, 500, 503},
	}, func(_ context.Context, input *models.ChannelRequest) (*models.SnapshotResponse, error) {
		if _, ok := s.channels[input.Name]; !ok || s.options.Frames == nil {
			return nil, huma.Error404NotFound("channel not found: " + input.Name)
		}
		f, seq := s.options.Frames.Snapshot(input.Name)
		if f == nil {
			return nil, huma.Error503ServiceUnavailable("no frame published yet")
		}
		jpg, err := f.JPEG(s.options.Quality)
		if err != nil {
			metrics.IncEncodeErrors(input.Name)
			return nil, huma.Error500InternalServerError("encode snapshot", err)
		}
		return &models.SnapshotResponse{
			ContentType: "image/jpeg",
			Sequence:    strconv.FormatUint(seq, 10),
			Body:        jpg,
		}, nil
	})
}

func (s *Server) channelData(ch Channel) models.ChannelData {
	cfg := ch.Config()
	snap := ch.Snapshot()

	data := models.ChannelData{
		Name:          cfg.Name,
		Endpoint:      "/" + cfg.Name,
		Source:        cfg.Source,
		Gamma:         cfg.Gamma,
		State:         string(snap.State),
		Active:        snap.Active,
		Status:        snap.Status,
		Severity:      string(snap.Severity),
		FPS:           snap.FPS,
		Frames:        snap.Frames,
		DroppedFrames: snap.DroppedFrames,
	}
	if !snap.LastAttempt.IsZero() {
		t := snap.LastAttempt
		data.LastAttempt = &t
	}
	if s.options.Frames != nil {
		_, data.Sequence = s.options.Frames.Snapshot(cfg.Name)
	}
	if h, ok := s.options.Streams[cfg.Name]; ok {
		data.Clients = h.Clients()
	}
	return data
}
