// Package serializer turns a compiled bytecode.Chunk into the framed
// byte stream spec.md §4.5 defines, and reads it back. Grounded on the
// teacher's compiler/code.go encoding/binary conventions (BigEndian,
// explicit width-per-field), generalized from a single uint16 operand
// encoder into a full stream format.
package serializer

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"japl/ast"
	"japl/bytecode"
	"japl/token"
)

const magic = "JAPL_BYTECODE"

const (
	tagIdentifier byte = 0x00
	tagNumber     byte = 0x01
	tagString     byte = 0x02
	tagList       byte = 0x03
	tagSet        byte = 0x04
	tagDict       byte = 0x05
	tagTuple      byte = 0x06
	tagFunction   byte = 0x07
	tagClass      byte = 0x08
	tagVar        byte = 0x09
	tagNan        byte = 0x0A
	tagInf        byte = 0x0B
	tagTrue       byte = 0x0C
	tagFalse      byte = 0x0D
	tagNil        byte = 0x0F
	tagLambda     byte = 0x10

	constsTerminator byte = 0x59
)

const (
	stringSubPlain  byte = 0x00
	stringSubByte   byte = 0x01
	stringSubFormat byte = 0x02
)

// BuildInfo is the caller-supplied provenance recorded alongside a
// compiled chunk: spec.md §4.5's version/branch/commit/timestamp
// header fields, none of which are derivable from the chunk or source
// text alone.
type BuildInfo struct {
	VersionMajor, VersionMinor, VersionPatch uint8
	Branch                                   string
	CommitHash                               string // exactly 40 ASCII hex characters
	Timestamp                                int64  // UNIX seconds
}

// Metadata is everything Load recovers from a stream's header,
// BuildInfo plus the source hash stored alongside it.
type Metadata struct {
	BuildInfo
	SourceSHA256 [32]byte
}

// Dump serializes chunk, framed with info and a SHA-256 of source, into
// the wire format spec.md §4.5 defines. filename is used only for
// diagnostics, never written to the stream.
func Dump(chunk *bytecode.Chunk, source, filename string, info BuildInfo) ([]byte, error) {
	if len(info.CommitHash) != 40 {
		return nil, newFormatError(filename, fmt.Sprintf("commit hash must be exactly 40 hex characters, got %d", len(info.CommitHash)))
	}
	if len(info.Branch) > 255 {
		return nil, newFormatError(filename, "branch name exceeds 255 bytes")
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(info.VersionMajor)
	buf.WriteByte(info.VersionMinor)
	buf.WriteByte(info.VersionPatch)
	buf.WriteByte(byte(len(info.Branch)))
	buf.WriteString(info.Branch)
	buf.WriteString(info.CommitHash)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(info.Timestamp))
	buf.Write(tsBuf[:])

	sum := sha256.Sum256([]byte(source))
	buf.Write(sum[:])

	for _, c := range chunk.Consts {
		if err := encodeConstant(&buf, c, filename); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(constsTerminator)

	if len(chunk.Code) > 1<<24-1 {
		return nil, newFormatError(filename, "code section exceeds maximum of 2^24-1 bytes")
	}
	writeU24(&buf, len(chunk.Code))
	buf.Write(chunk.Code)

	return buf.Bytes(), nil
}

// Load reads back a stream produced by Dump, returning its header
// metadata and the reconstructed chunk. Any truncation is reported as
// a FormatError.
func Load(data []byte) (Metadata, *bytecode.Chunk, error) {
	r := &reader{data: data}
	var meta Metadata

	marker, err := r.take(len(magic))
	if err != nil {
		return meta, nil, newFormatError("", "truncated magic marker")
	}
	if string(marker) != magic {
		return meta, nil, newFormatError("", "bad magic marker: not a JAPL bytecode file")
	}

	major, err := r.byte()
	if err != nil {
		return meta, nil, newFormatError("", "truncated version")
	}
	minor, err := r.byte()
	if err != nil {
		return meta, nil, newFormatError("", "truncated version")
	}
	patch, err := r.byte()
	if err != nil {
		return meta, nil, newFormatError("", "truncated version")
	}
	meta.VersionMajor, meta.VersionMinor, meta.VersionPatch = major, minor, patch

	branchLen, err := r.byte()
	if err != nil {
		return meta, nil, newFormatError("", "truncated branch length")
	}
	branch, err := r.take(int(branchLen))
	if err != nil {
		return meta, nil, newFormatError("", "truncated branch name")
	}
	meta.Branch = string(branch)

	commit, err := r.take(40)
	if err != nil {
		return meta, nil, newFormatError("", "truncated commit hash")
	}
	meta.CommitHash = string(commit)

	tsBytes, err := r.take(8)
	if err != nil {
		return meta, nil, newFormatError("", "truncated timestamp")
	}
	meta.Timestamp = int64(binary.BigEndian.Uint64(tsBytes))

	shaBytes, err := r.take(32)
	if err != nil {
		return meta, nil, newFormatError("", "truncated source hash")
	}
	copy(meta.SourceSHA256[:], shaBytes)

	chunk := bytecode.NewChunk(false)
	for {
		tag, err := r.peekByte()
		if err != nil {
			return meta, nil, newFormatError("", "truncated constants table")
		}
		if tag == constsTerminator {
			r.byte() // consume terminator
			break
		}
		value, err := decodeConstant(r)
		if err != nil {
			return meta, nil, err
		}
		chunk.Consts = append(chunk.Consts, value)
	}

	codeLen, err := r.takeU24()
	if err != nil {
		return meta, nil, newFormatError("", "truncated code length")
	}
	code, err := r.take(codeLen)
	if err != nil {
		return meta, nil, newFormatError("", "truncated code section")
	}
	chunk.Code = append([]byte{}, code...)

	return meta, chunk, nil
}

// --- constant encoding -------------------------------------------------------

func encodeConstant(buf *bytes.Buffer, value any, filename string) error {
	switch v := value.(type) {
	case *ast.Literal:
		return encodeLiteral(buf, v, filename)
	case *ast.Identifier:
		buf.WriteByte(tagIdentifier)
		writePayload(buf, []byte(v.Name()))
		return nil
	case *bytecode.FunctionConstant:
		return encodeFunction(buf, v, filename)
	case *bytecode.ClassConstant:
		return encodeClass(buf, v, filename)
	default:
		return newFormatError(filename, fmt.Sprintf("unsupported constant-pool entry %T", value))
	}
}

func encodeLiteral(buf *bytes.Buffer, l *ast.Literal, filename string) error {
	switch l.Kind {
	case ast.LiteralInt, ast.LiteralHex, ast.LiteralOctal, ast.LiteralBinary, ast.LiteralFloat:
		decimal, err := normalizeNumber(l)
		if err != nil {
			return newFormatError(filename, err.Error())
		}
		buf.WriteByte(tagNumber)
		writePayload(buf, []byte(decimal))
	case ast.LiteralString:
		s, _ := l.Value.(string)
		buf.WriteByte(tagString)
		buf.WriteByte(stringSubPlain)
		writePayload(buf, []byte(s))
	case ast.LiteralBool:
		v, _ := l.Value.(bool)
		if v {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case ast.LiteralNil:
		buf.WriteByte(tagNil)
	case ast.LiteralNan:
		buf.WriteByte(tagNan)
	case ast.LiteralInf:
		buf.WriteByte(tagInf)
	default:
		return newFormatError(filename, fmt.Sprintf("unsupported literal kind %d", l.Kind))
	}
	return nil
}

// normalizeNumber renders a literal's value as a decimal ASCII string,
// converting any non-decimal base and any scientific-notation float to
// plain decimal form.
func normalizeNumber(l *ast.Literal) (string, error) {
	switch l.Kind {
	case ast.LiteralFloat:
		f, err := strconv.ParseFloat(l.Tok.Lexeme, 64)
		if err != nil {
			return "", err
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	default:
		base, prefixLen := 10, 0
		switch l.Kind {
		case ast.LiteralHex:
			base, prefixLen = 16, 2
		case ast.LiteralOctal:
			base, prefixLen = 8, 2
		case ast.LiteralBinary:
			base, prefixLen = 2, 2
		}
		digits := l.Tok.Lexeme
		if prefixLen > 0 && len(digits) >= prefixLen {
			digits = digits[prefixLen:]
		}
		n, err := strconv.ParseInt(digits, base, 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	}
}

func encodeFunction(buf *bytes.Buffer, fn *bytecode.FunctionConstant, filename string) error {
	var body bytes.Buffer
	writePayload(&body, []byte(fn.Name))
	body.WriteByte(byte(len(fn.Params)))
	for i, p := range fn.Params {
		writePayload(&body, []byte(p))
		hasDefault := byte(0)
		if i < len(fn.HasDefault) && fn.HasDefault[i] {
			hasDefault = 1
		}
		body.WriteByte(hasDefault)
	}
	body.WriteByte(boolByte(fn.IsAsync))
	body.WriteByte(boolByte(fn.IsGenerator))
	if err := encodeChunk(&body, fn.Chunk, filename); err != nil {
		return err
	}

	tag := tagFunction
	if fn.Name == "<lambda>" {
		tag = tagLambda
	}
	buf.WriteByte(tag)
	writePayload(buf, body.Bytes())
	return nil
}

func encodeClass(buf *bytes.Buffer, cls *bytecode.ClassConstant, filename string) error {
	var body bytes.Buffer
	writePayload(&body, []byte(cls.Name))
	body.WriteByte(byte(len(cls.Parents)))
	for _, p := range cls.Parents {
		writePayload(&body, []byte(p))
	}
	if err := encodeChunk(&body, cls.Members, filename); err != nil {
		return err
	}

	buf.WriteByte(tagClass)
	writePayload(buf, body.Bytes())
	return nil
}

// encodeChunk nests an entire constants-table-plus-code-section
// (minus the file header) for a function or class body.
func encodeChunk(buf *bytes.Buffer, chunk *bytecode.Chunk, filename string) error {
	for _, c := range chunk.Consts {
		if err := encodeConstant(buf, c, filename); err != nil {
			return err
		}
	}
	buf.WriteByte(constsTerminator)
	writeU24(buf, len(chunk.Code))
	buf.Write(chunk.Code)
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writePayload(buf *bytes.Buffer, payload []byte) {
	writeU24(buf, len(payload))
	buf.Write(payload)
}

func writeU24(buf *bytes.Buffer, n int) {
	buf.WriteByte(byte(n >> 16))
	buf.WriteByte(byte(n >> 8))
	buf.WriteByte(byte(n))
}

// --- constant decoding -------------------------------------------------------

func decodeConstant(r *reader) (any, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, newFormatError("", "truncated constant tag")
	}
	switch tag {
	case tagIdentifier:
		payload, err := r.takePayload()
		if err != nil {
			return nil, newFormatError("", "truncated identifier constant")
		}
		return &ast.Identifier{Tok: token.CreateToken(token.IDENTIFIER, string(payload), 0, 0, 0)}, nil
	case tagNumber:
		payload, err := r.takePayload()
		if err != nil {
			return nil, newFormatError("", "truncated number constant")
		}
		return numberLiteral(string(payload)), nil
	case tagString:
		if _, err := r.byte(); err != nil {
			return nil, newFormatError("", "truncated string sub-tag")
		}
		payload, err := r.takePayload()
		if err != nil {
			return nil, newFormatError("", "truncated string constant")
		}
		return stringLiteral(string(payload)), nil
	case tagTrue:
		return boolLiteral(true), nil
	case tagFalse:
		return boolLiteral(false), nil
	case tagNil:
		return &ast.Literal{Kind: ast.LiteralNil}, nil
	case tagNan:
		return &ast.Literal{Kind: ast.LiteralNan}, nil
	case tagInf:
		return &ast.Literal{Kind: ast.LiteralInf}, nil
	case tagFunction, tagLambda:
		return decodeFunction(r, tag == tagLambda)
	case tagClass:
		return decodeClass(r)
	default:
		return nil, newFormatError("", fmt.Sprintf("unsupported constant tag 0x%02X", tag))
	}
}

func decodeFunction(r *reader, isLambda bool) (*bytecode.FunctionConstant, error) {
	payload, err := r.takePayload()
	if err != nil {
		return nil, newFormatError("", "truncated function constant")
	}
	br := &reader{data: payload}

	nameBytes, err := br.takePayload()
	if err != nil {
		return nil, newFormatError("", "truncated function name")
	}
	paramCount, err := br.byte()
	if err != nil {
		return nil, newFormatError("", "truncated function param count")
	}
	var params []string
	var hasDefault []bool
	for i := 0; i < int(paramCount); i++ {
		pname, err := br.takePayload()
		if err != nil {
			return nil, newFormatError("", "truncated function param")
		}
		flag, err := br.byte()
		if err != nil {
			return nil, newFormatError("", "truncated function param default flag")
		}
		params = append(params, string(pname))
		hasDefault = append(hasDefault, flag != 0)
	}
	isAsync, err := br.byte()
	if err != nil {
		return nil, newFormatError("", "truncated function async flag")
	}
	isGenerator, err := br.byte()
	if err != nil {
		return nil, newFormatError("", "truncated function generator flag")
	}
	chunk, err := decodeChunk(br)
	if err != nil {
		return nil, err
	}
	name := string(nameBytes)
	if isLambda {
		name = "<lambda>"
	}
	return &bytecode.FunctionConstant{
		Name: name, Params: params, HasDefault: hasDefault,
		IsAsync: isAsync != 0, IsGenerator: isGenerator != 0, Chunk: chunk,
	}, nil
}

func decodeClass(r *reader) (*bytecode.ClassConstant, error) {
	payload, err := r.takePayload()
	if err != nil {
		return nil, newFormatError("", "truncated class constant")
	}
	br := &reader{data: payload}

	nameBytes, err := br.takePayload()
	if err != nil {
		return nil, newFormatError("", "truncated class name")
	}
	parentCount, err := br.byte()
	if err != nil {
		return nil, newFormatError("", "truncated class parent count")
	}
	var parents []string
	for i := 0; i < int(parentCount); i++ {
		p, err := br.takePayload()
		if err != nil {
			return nil, newFormatError("", "truncated class parent")
		}
		parents = append(parents, string(p))
	}
	chunk, err := decodeChunk(br)
	if err != nil {
		return nil, err
	}
	return &bytecode.ClassConstant{Name: string(nameBytes), Parents: parents, Members: chunk}, nil
}

func decodeChunk(r *reader) (*bytecode.Chunk, error) {
	chunk := bytecode.NewChunk(false)
	for {
		tag, err := r.peekByte()
		if err != nil {
			return nil, newFormatError("", "truncated nested constants table")
		}
		if tag == constsTerminator {
			r.byte()
			break
		}
		value, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		chunk.Consts = append(chunk.Consts, value)
	}
	codeLen, err := r.takeU24()
	if err != nil {
		return nil, newFormatError("", "truncated nested code length")
	}
	code, err := r.take(codeLen)
	if err != nil {
		return nil, newFormatError("", "truncated nested code section")
	}
	chunk.Code = append([]byte{}, code...)
	return chunk, nil
}

// --- small helpers to rebuild ast.Literal nodes on load ---------------------

// numberLiteral rebuilds a Literal from its normalized decimal ASCII
// payload. The payload lost which base/family produced it (§4.5 always
// normalizes to decimal), so the reloaded node is always base-10; it
// still distinguishes integer from float by the presence of a '.',
// matching how normalizeNumber rendered the two.
func numberLiteral(decimal string) *ast.Literal {
	if strings.Contains(decimal, ".") {
		f, _ := strconv.ParseFloat(decimal, 64)
		return &ast.Literal{
			Tok:   token.CreateToken(token.FLOAT, decimal, 0, 0, 0),
			Kind:  ast.LiteralFloat,
			Value: f,
		}
	}
	n, _ := strconv.ParseInt(decimal, 10, 64)
	return &ast.Literal{
		Tok:   token.CreateToken(token.INT, decimal, 0, 0, 0),
		Kind:  ast.LiteralInt,
		Value: n,
	}
}

func stringLiteral(s string) *ast.Literal {
	return &ast.Literal{
		Tok:   token.CreateToken(token.STRING, s, 0, 0, 0),
		Kind:  ast.LiteralString,
		Value: s,
	}
}

func boolLiteral(b bool) *ast.Literal {
	lexeme := "false"
	if b {
		lexeme = "true"
	}
	return &ast.Literal{
		Tok:   token.CreateToken(token.IDENTIFIER, lexeme, 0, 0, 0),
		Kind:  ast.LiteralBool,
		Value: b,
	}
}

// --- byte reader --------------------------------------------------------------

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of stream")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) peekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("unexpected end of stream")
	}
	return r.data[r.pos], nil
}

func (r *reader) takeU24() (int, error) {
	b, err := r.take(3)
	if err != nil {
		return 0, err
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2]), nil
}

func (r *reader) takePayload() ([]byte, error) {
	n, err := r.takeU24()
	if err != nil {
		return nil, err
	}
	return r.take(n)
}
