package prompts

import (
	_ "embed"
)

//go:embed system.txt
var DecideSystemPrompt string

//go:embed judge.txt
var JudgeSystemPrompt string
