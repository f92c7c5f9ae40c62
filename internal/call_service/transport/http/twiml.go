package http

import (
	"encoding/xml"
	"fmt"

	"github.com/carelinkhq/medcall/internal/call_service/voice"
)

// TwiML rendering of voice scripts. The script itself is transport-agnostic
// data; only this layer knows the provider's markup.

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr"`
	MaxLength int      `xml:"maxLength,attr"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// renderTwiML converts a voice script into the provider's XML markup.
func renderTwiML(script voice.Script) ([]byte, error) {
	resp := twimlResponse{}
	for _, inst := range script {
		switch {
		case inst.Say != nil:
			resp.Verbs = append(resp.Verbs, twimlSay{
				Voice:    inst.Say.Voice,
				Language: inst.Say.Language,
				Text:     inst.Say.Text,
			})
		case inst.Record != nil:
			resp.Verbs = append(resp.Verbs, twimlRecord{
				Action:    inst.Record.ActionURL,
				Timeout:   inst.Record.TimeoutSeconds,
				MaxLength: inst.Record.MaxLengthSeconds,
				PlayBeep:  inst.Record.PlayBeep,
			})
		default:
			return nil, fmt.Errorf("voice script instruction has no verb")
		}
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TwiML: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
