package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxErrorBodyBytes bounds the response body kept on a RemoteFetchError.
const MaxErrorBodyBytes = 1024

// RemoteFetchError is a transport or HTTP level failure reaching the remote
// API. StatusCode is 0 when no response was received.
type RemoteFetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteFetchError) Error() string {
	var b strings.Builder
	b.WriteString("remote fetch failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// RemoteQueryError is a successful HTTP response that carries GraphQL errors.
// Errors is the serialized errors array.
type RemoteQueryError struct {
	Errors string
}

func (e *RemoteQueryError) Error() string {
	return "remote query returned errors: " + e.Errors
}

// UpsertError reports the chunk whose transaction failed. ChunkIndex is zero
// based. Committed counts the records of earlier chunks, which stay committed.
type UpsertError struct {
	ChunkIndex int
	Committed  int
	Err        error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert failed at chunk %d after %d committed records: %v", e.ChunkIndex, e.Committed, e.Err)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

// boundBody truncates body to MaxErrorBodyBytes without splitting a rune.
func boundBody(body []byte) string {
	if len(body) <= MaxErrorBodyBytes {
		return strings.ToValidUTF8(string(body), "")
	}
	cut := MaxErrorBodyBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), "")
}
