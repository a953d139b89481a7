package checker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

var commonTypos = map[string]string{
	"teh": "the", "adn": "and", "taht": "that", "hte": "the",
	"wiht": "with", "thnig": "thing", "thigns": "things",
	"funciton": "function", "fucntion": "function", "funtion": "function",
	"retrun": "return", "reutrn": "return", "retrn": "return",
	"calss": "class", "classs": "class",
	"improt": "import", "imoprt": "import",
	"exoprt": "export", "exprot": "export",
	"cosnt": "const", "conts": "const",
	"varaible": "variable", "variabel": "variable", "varible": "variable",
	"strign": "string", "stirng": "string",
	"nubmer": "number", "numebr": "number",
	"booelan": "boolean", "bolean": "boolean",
	"arrary": "array", "arrray": "array",
	"obejct": "object", "objetc": "object", "objcet": "object",
	"lenght": "length", "legnth": "length",
	"widht": "width", "heigth": "height", "hieght": "height",
	"recieve": "receive", "recive": "receive",
	"occured": "occurred", "occuring": "occurring",
	"seperate": "separate", "seperator": "separator",
	"definately": "definitely", "defintely": "definitely",
	"neccessary": "necessary", "necesary": "necessary",
	"occassion": "occasion", "occurence": "occurrence",
	"adress": "address", "addresss": "address",
	"enviroment": "environment", "enviornment": "environment",
	"refrence": "reference", "referece": "reference",
	"langauge": "language", "languge": "language",
	"paramter": "parameter", "paramater": "parameter",
	"arguement": "argument", "arguemnt": "argument",
	"initalize": "initialize", "intialize": "initialize",
	"implment": "implement", "implemenation": "implementation",
	"responce": "response", "reponse": "response",
	"requried": "required", "requred": "required",
	"availible": "available", "avialable": "available",
	"visable": "visible", "visiable": "visible",
	"specifiy": "specify", "specifc": "specific",
	"acccess": "access", "acces": "access",
	"successfull": "successful", "succesful": "successful",
	"becuase": "because", "beacuse": "because",
	"differnt": "different", "diffrent": "different",
	"similiar": "similar", "simlar": "similar",
	"containts": "contains", "contians": "contains",
	"incldue": "include", "inculde": "include",
	"defualt": "default", "deafult": "default",
	"mesage": "message", "messsage": "message", "messgae": "message",
	"reuslt": "result", "resutl": "result", "reslut": "result",
}

var typoExts = extSet(
	".js", ".jsx", ".ts", ".tsx", ".rs", ".py", ".go", ".java",
	".c", ".cpp", ".h", ".hpp", ".rb", ".php", ".swift", ".kt",
	".scala", ".cs", ".md", ".txt",
)

// TyposChecker flags common misspellings anywhere in source text.
type TyposChecker struct{}

// NewTyposChecker creates a typos checker.
func NewTyposChecker() *TyposChecker {
	return &TyposChecker{}
}

func (c *TyposChecker) Name() string { return "typos" }

// Run scans all checkable files under repoPath for known typos.
func (c *TyposChecker) Run(repoPath string) ([]types.Diagnostic, error) {
	files, err := collectFiles(repoPath, typoExts)
	if err != nil {
		return nil, err
	}

	var diags []types.Diagnostic
	for _, f := range files {
		diags = append(diags, c.checkSource(f.rel, f.content)...)
	}
	return diags, nil
}

func (c *TyposChecker) checkSource(file, source string) []types.Diagnostic {
	var diags []types.Diagnostic
	for i, line := range strings.Split(source, "\n") {
		for _, w := range extractWords(line) {
			correction, ok := commonTypos[strings.ToLower(w.text)]
			if !ok {
				continue
			}
			diags = append(diags, types.Diagnostic{
				Checker:    "typos",
				Severity:   types.SeverityInfo,
				File:       file,
				Line:       i + 1,
				Column:     w.start + 1,
				Message:    fmt.Sprintf("Possible typo: '%s' -> '%s'", w.text, correction),
				Rule:       "typo",
				Suggestion: fmt.Sprintf("Did you mean '%s'?", correction),
			})
		}
	}
	return diags
}

type word struct {
	text  string
	start int
}

// extractWords returns alphabetic runs of at least 3 characters with
// their byte offsets.
func extractWords(line string) []word {
	var words []word
	start := -1
	for i, r := range line {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if w := line[start:i]; len(w) >= 3 {
				words = append(words, word{text: w, start: start})
			}
			start = -1
		}
	}
	if start >= 0 {
		if w := line[start:]; len(w) >= 3 {
			words = append(words, word{text: w, start: start})
		}
	}
	return words
}
