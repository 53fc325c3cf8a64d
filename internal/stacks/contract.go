package stacks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pvzzle/stxwatch/internal/clarity"
)

var reContractName = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9]|[-_])*$`)

// ContractID names a deployed contract as "<address>.<name>".
type ContractID struct {
	Address string
	Name    string
}

func ParseContractID(s string) (ContractID, error) {
	addr, name, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return ContractID{}, fmt.Errorf("contract id %q: missing contract name", s)
	}
	id := ContractID{Address: addr, Name: name}
	if err := id.Validate(); err != nil {
		return ContractID{}, err
	}
	return id, nil
}

func (c ContractID) Validate() error {
	if _, err := clarity.ParsePrincipal(c.Address); err != nil {
		return fmt.Errorf("contract address: %w", err)
	}
	if len(c.Name) == 0 || len(c.Name) > 128 || !reContractName.MatchString(c.Name) {
		return fmt.Errorf("contract name %q is invalid", c.Name)
	}
	return nil
}

func (c ContractID) String() string {
	return c.Address + "." + c.Name
}

// Principal returns the contract principal value used as a call argument.
func (c ContractID) Principal() (clarity.Principal, error) {
	return clarity.ParsePrincipal(c.String())
}
