// Package twiml builds the voice-markup documents the telephony provider
// executes. Only the verbs this service speaks are modeled.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// DefaultVoice is the synthesized voice used for every spoken line.
const DefaultVoice = "alice"

// Say is a spoken line.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather collects speech input and posts the transcription to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           *Say     `xml:",omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is the root document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

func New() *Response {
	return &Response{}
}

func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Voice: DefaultVoice, Text: text})
	return r
}

// GatherSpeech appends a speech collector that speaks prompt while listening
// and posts the result to action after timeout seconds of silence.
func (r *Response) GatherSpeech(action string, timeout int, prompt string) *Response {
	g := Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Timeout:       timeout,
		SpeechTimeout: "auto",
	}
	if prompt != "" {
		g.Say = &Say{Voice: DefaultVoice, Text: prompt}
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the document with the XML declaration the provider
// expects on every response.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal voice response: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
