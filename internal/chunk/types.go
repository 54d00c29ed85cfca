package chunk

import (
	"context"
	"strconv"
	"time"
)

// Chunk size defaults (based on 2025 RAG research)
const (
	DefaultMaxChunkTokens = 512 // Optimal for 85-90% recall
	DefaultOverlapTokens  = 64  // ~12.5% overlap
	MinChunkTokens        = 100 // Minimum viable chunk
	TokensPerChar         = 4   // Rough approximation: 4 chars = 1 token
)

// ContentType represents the type of content in a chunk
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// ChunkType is the kind of declaration a chunk was cut from.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeMethod    ChunkType = "method"
	ChunkTypeStruct    ChunkType = "struct"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeEnum      ChunkType = "enum"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeImpl      ChunkType = "impl"
	ChunkTypeModule    ChunkType = "module"
	ChunkTypeConstant  ChunkType = "constant"
	ChunkTypeWholeFile ChunkType = "whole_file"
)

// Chunk is a retrievable unit of content. Identity is
// "{file_path}:{start_line}:{end_line}" (see ID()); within a file, chunk
// ranges are non-overlapping and monotonically increasing in StartLine.
type Chunk struct {
	FilePath     string            // Relative to project root
	Content      string            // Full content with context
	RawContent   string            // Just the symbol, no context (code only)
	Context      string            // Imports, package decl (code only)
	ContentType  ContentType       // code, markdown, text
	ChunkType    ChunkType         // function/struct/method/class/...
	Language     string            // go, typescript, python, etc.
	StartLine    int               // 1-indexed
	EndLine      int               // Inclusive
	SymbolName   string            // empty for whole-file/non-declaration chunks
	QualifiedName string           // e.g. "pkg.Type.Method"
	ParentScope  string            // containing type/module name, empty at top level
	DocComment   string
	Tags         []string          // curated tag list (e.g. "exported", "test", "generated")
	Symbols      []*Symbol         // Functions, classes, etc.
	Metadata     map[string]string // Custom metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ID returns the chunk's identity: "{file_path}:{start_line}:{end_line}".
func (c *Chunk) ID() string {
	return c.FilePath + ":" + strconv.Itoa(c.StartLine) + ":" + strconv.Itoa(c.EndLine)
}

// FileInput is input for the Chunker interface
type FileInput struct {
	Path     string // Relative path
	Content  []byte // File content
	Language string // go, typescript, python, etc.
}

// Chunker is the interface for splitting files into chunks
type Chunker interface {
	// Chunk splits a file into semantic chunks
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles
	SupportedExtensions() []string
}

// SymbolType represents the kind of code symbol
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Symbol represents a code symbol extracted from parsing
type Symbol struct {
	Name        string
	Type        SymbolType
	StartLine   int
	EndLine     int
	Signature   string
	DocComment  string
	ParentScope string // name of the innermost enclosing type, empty at top level
}

// Tree represents a parsed AST
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that indicate function declarations
	FunctionTypes []string

	// Node types that indicate class/struct definitions
	ClassTypes []string

	// Node types that indicate interface definitions
	InterfaceTypes []string

	// Node types that indicate method definitions
	MethodTypes []string

	// Node types that indicate type definitions
	TypeDefTypes []string

	// Node types that indicate constant declarations
	ConstantTypes []string

	// Node types that indicate variable declarations
	VariableTypes []string

	// Node type for name identifier
	NameField string
}
