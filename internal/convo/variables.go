package convo

// Context variable keys written by the orchestrator on successful
// actions and read by the reference resolver and planner. Centralized
// here so every reader/writer shares one vocabulary instead of
// scattered string literals.
const (
	VarLastGeneratedText   = "last_generated_text"
	VarLastGeneratedImage  = "last_generated_image"
	VarLastGeneratedMusic  = "last_generated_music"
	VarLastSavedImage      = "last_saved_image"
	VarLastSavedMusic      = "last_saved_music"
	VarLastCreatedFile     = "last_created_file"
	VarCreatedFiles        = "created_files"
	VarLastCreatedDir      = "last_created_dir"
	VarCreatedDirs         = "created_dirs"
	VarLastOCRText         = "last_ocr_text"
	VarLastQueryResults    = "last_query_results"
	VarLastQuery           = "last_query"
	VarLastSearchResults   = "last_search_results"
	VarLastSearchQuery     = "last_search_query"
	VarLastCommand         = "last_command"
	VarLastCommandExitCode = "last_command_exit_code"
	VarLastCommandStdout   = "last_command_stdout"
	VarLastCommandStderr   = "last_command_stderr"
	VarWorkingDirectory    = "working_directory"
)

// MaxCapturedOutputBytes bounds last_command_stdout/stderr.
const MaxCapturedOutputBytes = 8 * 1024

// Reference-resolver slot names carried in resolved_values.
const (
	SlotImagePath     = "image_path"
	SlotFilePath      = "file_path"
	SlotMusicPath     = "music_path"
	SlotOCRText       = "ocr_text"
	SlotGeneratedText = "generated_text"
)
