package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// idLength is the number of hex characters kept from the ID digest.
const idLength = 12

// decodeText decodes file bytes as UTF-8, dropping a leading BOM and
// replacing invalid sequences with U+FFFD.
func decodeText(data []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// ChunkID derives a stable identifier from the file path, start line and
// content digest, so identical input always yields identical IDs.
func ChunkID(filePath string, startLine int, content string) string {
	contentSum := sha256.Sum256([]byte(content))

	var key strings.Builder
	key.WriteString(filePath)
	key.WriteByte(':')
	key.WriteString(strconv.Itoa(startLine))
	key.WriteByte(':')
	key.WriteString(hex.EncodeToString(contentSum[:]))

	sum := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(sum[:])[:idLength]
}
