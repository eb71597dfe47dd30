package camilla

import (
	"encoding/json"
	"fmt"
	"math"
)

// CamillaDSP websocket commands. A command without arguments is sent as a
// bare JSON string, one with arguments as {"Name": args}. Replies arrive
// in request order as {"Name": {"result": "Ok", "value": ...}}.
const (
	cmdSetFaderVolume  = "SetFaderVolume"
	cmdSetFaderMute    = "SetFaderMute"
	cmdPatchConfig     = "PatchConfig"
	cmdGetFaders       = "GetFaders"
	cmdGetPlaybackRms  = "GetPlaybackSignalRms"
	cmdGetPlaybackPeak = "GetPlaybackSignalPeak"
	cmdGetState        = "GetState"
	cmdGetVersion      = "GetVersion"
	resultOK           = "Ok"
)

type response struct {
	Result string          `json:"result"`
	Value  json.RawMessage `json:"value"`
}

type fader struct {
	Volume float64 `json:"volume"`
	Mute   bool    `json:"mute"`
}

func encodeRequest(name string, args any) ([]byte, error) {
	if args == nil {
		return json.Marshal(name)
	}
	return json.Marshal(map[string]any{name: args})
}

func decodeResponse(data []byte) (string, response, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", response{}, fmt.Errorf("decode reply: %w", err)
	}
	if len(envelope) != 1 {
		return "", response{}, fmt.Errorf("decode reply: expected one command, got %d", len(envelope))
	}
	for name, raw := range envelope {
		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return name, response{}, fmt.Errorf("decode %s reply: %w", name, err)
		}
		return name, resp, nil
	}
	panic("unreachable")
}

func filterGainPatch(filter string, db float64) map[string]any {
	return map[string]any{
		"filters": map[string]any{
			filter: map[string]any{
				"parameters": map[string]any{"gain": db},
			},
		},
	}
}

// withMasterLevel prepends the loudest channel so index 0 addresses the
// master bus like every other level vector.
func withMasterLevel(values []float64) []float64 {
	loudest := math.Inf(-1)
	for _, v := range values {
		loudest = math.Max(loudest, v)
	}
	if len(values) == 0 {
		loudest = -1000
	}
	return append([]float64{loudest}, values...)
}
