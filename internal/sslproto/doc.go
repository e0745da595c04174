// Package sslproto holds the typed referee and vision snapshots the
// announcer works on, and decodes them from the SSL game controller and
// vision protobuf wire formats.
package sslproto
