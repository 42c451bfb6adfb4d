package agent

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mcdev12/watchroom/go/internal/models"
)

// Renderer is the embedded player that actually decodes video. The agent
// only ever tells it where to navigate and what to do.
type Renderer interface {
	// ChangeAspect resizes the surface for aspect and returns the pixel resolution chosen.
	ChangeAspect(aspect models.Aspect) (width, height int)
	Post(cmds ...RendererCommand) error
}

// RendererCommand is one JSON instruction for the player page.
type RendererCommand struct {
	Type      string   `json:"type"`
	Command   string   `json:"command"`
	Path      string   `json:"path,omitempty"`
	TimeStamp *float64 `json:"timeStamp,omitempty"`
	Level     *float64 `json:"level,omitempty"`
}

const (
	commandTypeNav   = "nav"
	commandTypeVideo = "video"

	commandPush      = "push"
	commandPlay      = "play"
	commandPause     = "pause"
	commandReadyUp   = "readyUp"
	commandSetVolume = "setVolume"

	homePath = "/home"
)

func NavHome() RendererCommand {
	return RendererCommand{Type: commandTypeNav, Command: commandPush, Path: homePath}
}

// LoadYouTube navigates to id at ts. A zero resolution is left out of the path.
func LoadYouTube(id string, ts float64, x, y int) RendererCommand {
	path := fmt.Sprintf("/youtube/%s/%s", id, strconv.FormatFloat(ts, 'f', -1, 64))
	if x != 0 && y != 0 {
		path += fmt.Sprintf("?x=%d&y=%d", x, y)
	}
	return RendererCommand{Type: commandTypeNav, Command: commandPush, Path: path}
}

func Play() RendererCommand {
	return RendererCommand{Type: commandTypeVideo, Command: commandPlay}
}

func Pause() RendererCommand {
	return RendererCommand{Type: commandTypeVideo, Command: commandPause}
}

func ReadyUpAt(ts float64) RendererCommand {
	return RendererCommand{Type: commandTypeVideo, Command: commandReadyUp, TimeStamp: &ts}
}

func SetVolume(level float64) RendererCommand {
	return RendererCommand{Type: commandTypeVideo, Command: commandSetVolume, Level: &level}
}

// Renderer message types
const (
	MessageInfoCurrentTime = "infoCurrentTime"
	MessageError           = "error"
	MessagePlayerError     = "playerError"
	MessageStateChange     = "stateChange"
)

// RendererMessage is one JSON message emitted by the player page.
type RendererMessage struct {
	Type        string   `json:"type"`
	CurrentTime *float64 `json:"current_time,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Error       string   `json:"error,omitempty"`
	Code        int      `json:"code,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func ParseRendererMessage(raw []byte) (RendererMessage, error) {
	var m RendererMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return RendererMessage{}, fmt.Errorf("invalid renderer message: %w", err)
	}
	if m.Type == "" {
		return RendererMessage{}, fmt.Errorf("renderer message has no type")
	}
	return m, nil
}

// EjectReason is the user-visible text for a player error code.
func EjectReason(code int) string {
	switch code {
	case 2:
		return "Bad YouTube Id"
	case 5:
		return "Can't Be Played in HTML5 Player"
	case 101, 150:
		return "Can't Be Played in Embedded Player"
	default:
		return fmt.Sprintf("Unknown Error (%d)", code)
	}
}
