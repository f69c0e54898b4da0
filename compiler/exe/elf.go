package exe

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Image is everything the executable is made of.
	Image struct {
		Code []byte
		// Entry is the code offset execution starts at.
		Entry int
		// BSS is the size of the zero-filled data segment.
		BSS int
	}
)

const (
	Base     = 0x400000
	PageSize = 0x1000

	ehdrSize = 64
	phdrSize = 56
	shdrSize = 64
	nphdr    = 2

	// CodeOffset is the file offset and the offset from Base the code is loaded at.
	CodeOffset = ehdrSize + nphdr*phdrSize
)

var shstrtab = []byte("\x00.text\x00.bss\x00.shstrtab\x00")

const (
	shnameText     = 1
	shnameBSS      = 7
	shnameShstrtab = 12
)

// CodeAddr is the virtual address of the code.
func CodeAddr() uint64 { return Base + CodeOffset }

// BSSAddr is the virtual address of the data segment for code of the given size.
func BSSAddr(codeSize int) uint64 {
	end := uint64(Base + CodeOffset + codeSize)

	return (end + PageSize - 1) &^ (PageSize - 1)
}

// Append appends an x86-64 Linux executable:
// ELF header, two program headers, code, section names, section headers.
// The first PT_LOAD maps headers and code read+exec, the second is a read+write zero-filled segment.
func Append(b []byte, img Image) ([]byte, error) {
	if img.Entry < 0 || img.Entry >= len(img.Code) {
		return nil, errors.New("entry %#x outside of code (size %#x)", img.Entry, len(img.Code))
	}

	if img.BSS < 0 {
		return nil, errors.New("negative data segment size: %d", img.BSS)
	}

	textEnd := CodeOffset + len(img.Code)
	shstrOff := textEnd
	shOff := (shstrOff + len(shstrtab) + 7) &^ 7

	bssAddr := BSSAddr(len(img.Code))

	var buf bytes.Buffer

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     CodeAddr() + uint64(img.Entry),
		Phoff:     ehdrSize,
		Shoff:     uint64(shOff),
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     nphdr,
		Shentsize: shdrSize,
		Shnum:     4,
		Shstrndx:  3,
	}

	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	progs := [nphdr]elf.Prog64{{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    0,
		Vaddr:  Base,
		Paddr:  Base,
		Filesz: uint64(textEnd),
		Memsz:  uint64(textEnd),
		Align:  PageSize,
	}, {
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_W),
		Off:    0,
		Vaddr:  bssAddr,
		Paddr:  bssAddr,
		Filesz: 0,
		Memsz:  uint64(img.BSS),
		Align:  PageSize,
	}}

	sects := [4]elf.Section64{
		{},
		{
			Name:      shnameText,
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr:      CodeAddr(),
			Off:       CodeOffset,
			Size:      uint64(len(img.Code)),
			Addralign: 16,
		},
		{
			Name:      shnameBSS,
			Type:      uint32(elf.SHT_NOBITS),
			Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
			Addr:      bssAddr,
			Off:       uint64(textEnd),
			Size:      uint64(img.BSS),
			Addralign: 8,
		},
		{
			Name:      shnameShstrtab,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       uint64(shstrOff),
			Size:      uint64(len(shstrtab)),
			Addralign: 1,
		},
	}

	for _, x := range []interface{}{&hdr, &progs} {
		err := binary.Write(&buf, binary.LittleEndian, x)
		if err != nil {
			return nil, errors.Wrap(err, "write headers")
		}
	}

	buf.Write(img.Code)
	buf.Write(shstrtab)

	for buf.Len() < shOff {
		buf.WriteByte(0)
	}

	err := binary.Write(&buf, binary.LittleEndian, &sects)
	if err != nil {
		return nil, errors.Wrap(err, "write section headers")
	}

	return append(b, buf.Bytes()...), nil
}

// WriteFile writes the image to name as an executable.
// The file is replaced atomically, so a failure never leaves a partial image behind.
func WriteFile(ctx context.Context, name string, img Image) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "exe: write file", "name", name, "code", len(img.Code), "bss", img.BSS, "entry", img.Entry)
	defer tr.Finish("err", &err)

	data, err := Append(nil, img)
	if err != nil {
		return errors.Wrap(err, "build image")
	}

	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write")
	}

	err = tmp.Chmod(0o755)
	if err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod")
	}

	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "close")
	}

	err = os.Rename(tmp.Name(), name)
	if err != nil {
		return errors.Wrap(err, "rename")
	}

	tr.Printw("image written", "size", len(data), "entry_addr", tlog.FormatNext("%#x"), CodeAddr()+uint64(img.Entry))

	return nil
}
