package display

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/nerrad567/mqttmon/internal/session"
)

const (
	// ProtocolTag is the first bracketed field of every header line.
	ProtocolTag = "MQTT"

	// DecodeErrorPlaceholder replaces payloads that are not valid UTF-8.
	DecodeErrorPlaceholder = "<Error formatting message for display>"
)

// Formatter turns message descriptors into display strings.
//
// A Formatter holds only immutable color settings and is safe for
// concurrent use.
type Formatter struct {
	tag     *color.Color
	value   *color.Color
	payload *color.Color
	failure *color.Color
}

// NewFormatter creates a Formatter. With colorize false the output carries
// no escape sequences at all.
func NewFormatter(colorize bool) *Formatter {
	f := &Formatter{
		tag:     color.New(color.FgMagenta, color.Bold),
		value:   color.New(color.FgWhite, color.Bold),
		payload: color.New(color.FgBlue, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{f.tag, f.value, f.payload, f.failure} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// FormatMessage is Format applied to a session.Message.
func (f *Formatter) FormatMessage(msg session.Message) string {
	return f.Format(msg.Topic, msg.Payload, msg.QoS, msg.Duplicate, msg.Retained, msg.MessageID)
}

// Format renders one message as a header line and a payload line, each
// terminated by a newline. It never fails: a payload that is not valid
// UTF-8 is replaced by DecodeErrorPlaceholder.
func (f *Formatter) Format(topic string, payload []byte, qos byte, dup, retain bool, msgID uint16) string {
	var b strings.Builder

	b.WriteString("[")
	b.WriteString(f.tag.Sprint(ProtocolTag))
	b.WriteString("] ")

	f.field(&b, "Topic", topic)
	b.WriteString(" ")
	f.field(&b, "QoS", strconv.Itoa(int(qos)))
	b.WriteString(" ")
	f.field(&b, "Dup", strconv.FormatBool(dup))
	b.WriteString(" ")
	f.field(&b, "Retain", strconv.FormatBool(retain))
	b.WriteString(" ")
	f.field(&b, "MessageId", strconv.Itoa(int(msgID)))
	b.WriteString("\n")

	b.WriteString(f.PayloadLine(payload))
	b.WriteString("\n")

	return b.String()
}

// PayloadLine renders only the second line, without its newline.
func (f *Formatter) PayloadLine(payload []byte) string {
	if !utf8.Valid(payload) {
		return f.failure.Sprint(DecodeErrorPlaceholder)
	}
	return " " + f.payload.Sprint(string(payload))
}

func (f *Formatter) field(b *strings.Builder, name, value string) {
	b.WriteString("[")
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(f.value.Sprint(value))
	b.WriteString("]")
}
