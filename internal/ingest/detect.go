package ingest

import (
	"path/filepath"
	"strings"
)

// Kind classifies a file by the extraction route it needs.
type Kind string

const (
	KindText         Kind = "text"
	KindPDF          Kind = "pdf"
	KindWordDoc      Kind = "word_doc"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindImage        Kind = "image"
	KindAudio        Kind = "audio"
	KindVideo        Kind = "video"
	KindUnknown      Kind = "unknown"
)

// kindByExtension maps lowercased file extensions to their kind.
// Plain-text formats are the large group since source code, notes and
// config files all extract the same way.
var kindByExtension = map[string]Kind{
	".txt": KindText, ".md": KindText, ".markdown": KindText,
	".go": KindText, ".py": KindText, ".js": KindText, ".ts": KindText,
	".java": KindText, ".c": KindText, ".cpp": KindText, ".h": KindText,
	".rs": KindText, ".rb": KindText, ".php": KindText, ".sh": KindText,
	".yaml": KindText, ".yml": KindText, ".json": KindText, ".toml": KindText,
	".xml": KindText, ".html": KindText, ".css": KindText, ".sql": KindText,
	".csv": KindText, ".rst": KindText, ".tex": KindText,

	".pdf": KindPDF,

	".doc": KindWordDoc, ".docx": KindWordDoc, ".odt": KindWordDoc,

	".xls": KindSpreadsheet, ".xlsx": KindSpreadsheet, ".ods": KindSpreadsheet,

	".ppt": KindPresentation, ".pptx": KindPresentation, ".odp": KindPresentation,

	".png": KindImage, ".jpg": KindImage, ".jpeg": KindImage,
	".gif": KindImage, ".webp": KindImage, ".bmp": KindImage,

	".mp3": KindAudio, ".wav": KindAudio, ".m4a": KindAudio,
	".flac": KindAudio, ".ogg": KindAudio,

	".mp4": KindVideo, ".mov": KindVideo, ".mkv": KindVideo,
	".avi": KindVideo, ".webm": KindVideo,
}

// DetectKind classifies a file path by extension.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	return KindUnknown
}
