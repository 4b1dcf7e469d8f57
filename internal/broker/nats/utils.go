package nats

import "strings"

// ToSubject converts an MQTT topic filter to NATS subject form.
// MQTT uses / separators with + and # wildcards; NATS uses . with * and >.
func ToSubject(topic string) string {
	subject := strings.ReplaceAll(topic, "+", "*")
	subject = strings.ReplaceAll(subject, "#", ">")
	return strings.ReplaceAll(subject, "/", ".")
}

// ToTopic converts a NATS subject back to MQTT topic form, the reverse of
// ToSubject. Delivered subjects are concrete so wildcard handling only
// matters for symmetry.
func ToTopic(subject string) string {
	topic := strings.ReplaceAll(subject, "*", "+")
	topic = strings.ReplaceAll(topic, ">", "#")
	return strings.ReplaceAll(topic, ".", "/")
}
