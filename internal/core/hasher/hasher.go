// Package hasher computes content digests and the deterministic ids given to
// units when an extension is re-published under a new identity.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// UnitNamespaceURL seeds the namespace unit ids are derived under.
const UnitNamespaceURL = "https://marketplace.visualstudio.com/vsts"

// unitNamespace is the name-based UUID of UnitNamespaceURL in the URL namespace.
var unitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(UnitNamespaceURL))

// CalculateSHA256 computes the SHA256 hash of the given content
// and returns it in the format "sha256:<hex_hash>".
func CalculateSHA256(content []byte) (string, error) {
	hasher := sha256.New()
	_, err := hasher.Write(content)
	if err != nil {
		return "", fmt.Errorf("failed to write content to hasher: %w", err)
	}
	hashBytes := hasher.Sum(nil)
	return fmt.Sprintf("sha256:%s", hex.EncodeToString(hashBytes)), nil
}

// UnitID derives the id of a unit from the publisher, the extension id and
// the unit name. The same three inputs always produce the same id.
func UnitID(publisher, extensionID, unitName string) string {
	name := fmt.Sprintf("%s.%s.%s", publisher, extensionID, unitName)
	return uuid.NewSHA1(unitNamespace, []byte(name)).String()
}
