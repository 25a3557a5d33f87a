package device

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"mime"
	"strconv"
	"strings"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

var (
	errChannelMissing   = errors.New("channel missing from response")
	errChannelMalformed = errors.New("channel value malformed")
)

// slot is one decoded analog input as reported by the device.
type slot struct {
	value  float64
	status int
	err    error
}

type jsonEnvelope struct {
	IO *struct {
		AI *[]json.RawMessage `json:"ai"`
	} `json:"io"`
}

type xmlEnvelope struct {
	XMLName xml.Name   `xml:"io"`
	AI      []xmlEntry `xml:"ai"`
}

type xmlEntry struct {
	Index  string `xml:"aiIndex"`
	Value  string `xml:"aiValueScaled"`
	Status string `xml:"aiStatus"`
}

// decodePayload validates the envelope and returns the slots keyed by aiIndex.
// An invalid envelope is a full-cycle failure; bad entries are kept per slot.
func decodePayload(contentType string, body []byte) (map[int]slot, error) {
	if isXML(contentType, body) {
		return decodeXML(body)
	}
	return decodeJSON(body)
}

func isXML(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/xml" || mt == "text/xml" {
			return true
		}
		if mt == "application/json" {
			return false
		}
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

func decodeJSON(body []byte) (map[int]slot, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err)
	}
	if env.IO == nil || env.IO.AI == nil {
		return nil, fmt.Errorf("%w: missing io.ai envelope", ports.ErrMalformedResponse)
	}

	out := make(map[int]slot, len(*env.IO.AI))
	for _, raw := range *env.IO.AI {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		var idx int
		if err := json.Unmarshal(fields["aiIndex"], &idx); err != nil {
			continue
		}
		if _, dup := out[idx]; dup {
			continue
		}
		s := slot{}
		var v *float64
		if err := json.Unmarshal(fields["aiValueScaled"], &v); err != nil || v == nil {
			s.err = errChannelMalformed
		} else {
			s.value = *v
		}
		if st, ok := fields["aiStatus"]; ok {
			if err := json.Unmarshal(st, &s.status); err != nil {
				s.err = errChannelMalformed
			}
		}
		out[idx] = s
	}
	return out, nil
}

func decodeXML(body []byte) (map[int]slot, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err)
	}

	out := make(map[int]slot, len(env.AI))
	for _, e := range env.AI {
		idx, err := strconv.Atoi(strings.TrimSpace(e.Index))
		if err != nil {
			continue
		}
		if _, dup := out[idx]; dup {
			continue
		}
		s := slot{}
		v, err := strconv.ParseFloat(strings.TrimSpace(e.Value), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			s.err = errChannelMalformed
		} else {
			s.value = v
		}
		if st := strings.TrimSpace(e.Status); st != "" {
			if s.status, err = strconv.Atoi(st); err != nil {
				s.err = errChannelMalformed
			}
		}
		out[idx] = s
	}
	return out, nil
}

// resolve lays the decoded slots out in configured channel order.
func resolve(channels []int, slots map[int]slot) []ports.ChannelValue {
	out := make([]ports.ChannelValue, 0, len(channels))
	for _, ch := range channels {
		cv := ports.ChannelValue{ChannelID: ch}
		s, ok := slots[ch]
		switch {
		case !ok:
			cv.Status = domain.StatusError
			cv.Err = errChannelMissing
		case s.err != nil:
			cv.Status = domain.StatusError
			cv.Err = s.err
		case s.status != 0:
			cv.Value = s.value
			cv.Status = domain.StatusStale
		default:
			cv.Value = s.value
			cv.Status = domain.StatusOK
		}
		out = append(out, cv)
	}
	return out
}
