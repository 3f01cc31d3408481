// Package display renders inbound MQTT messages for the terminal.
//
// Each message becomes two lines: a bracketed metadata header and the
// payload. Colors come from fatih/color and are fixed per Formatter, so the
// same inputs always produce the same string regardless of where the
// output is going.
//
//	[MQTT] [Topic=sensors/temp] [QoS=0] [Dup=false] [Retain=false] [MessageId=0]
//	 21.5
package display
