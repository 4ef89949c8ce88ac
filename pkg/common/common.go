package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
	NA       = "N/A"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

// UUIDint64 returns a snowflake id, unique within this process.
func UUIDint64() int64 {
	idNodeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		idNode = node
	})
	return idNode.Generate().Int64()
}

// Token returns a random 32 character hex string used for share links.
func Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func IsEmptyOrNA(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NA
}
