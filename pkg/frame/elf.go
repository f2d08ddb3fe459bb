package frame

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// ELFSymTab is a fallback symbol source for addresses the managed runtime
// cannot name, backed by the .symtab section of an ELF executable.
type ELFSymTab struct {
	symtab []elf.Symbol
	cache  map[uint64]string
}

func NewELFSymTab() *ELFSymTab {
	return &ELFSymTab{
		symtab: make([]elf.Symbol, 0),
		cache:  make(map[uint64]string),
	}
}

// Load reads the symbol table of the ELF file at pathname. Only function
// symbols are retained. Loading twice is a no-op.
func (e *ELFSymTab) Load(pathname string) error {
	if len(e.symtab) > 0 {
		return nil
	}

	file, err := elf.Open(pathname)
	if err != nil {
		return errors.Wrap(err, "error opening ELF file")
	}
	defer file.Close()

	syms, err := file.Symbols()
	if err != nil {
		return errors.Wrap(err, "error reading ELF symtable section")
	}

	for _, sym := range syms {
		// Exclude non-function symbols.
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		e.symtab = append(e.symtab, sym)
	}

	return nil
}

// GetName returns the symbol name covering an instruction pointer address.
func (e *ELFSymTab) GetName(ip uint64) (string, error) {
	if name, ok := e.cache[ip]; ok {
		return name, nil
	}
	if len(e.symtab) == 0 {
		return "", ErrSymTableEmpty
	}

	for _, s := range e.symtab {
		if ip >= s.Value && ip < (s.Value+s.Size) {
			e.cache[ip] = s.Name

			return s.Name, nil
		}
	}

	return "", ErrSymNotFound
}
