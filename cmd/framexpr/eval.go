package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"framexpr/internal/engine"
	"framexpr/internal/model"
	"framexpr/internal/values"
)

var evalSeed int64

var evalCmd = &cobra.Command{
	Use:   "eval EXPR",
	Short: "Compile and evaluate one ad-hoc expression against an empty scope",
	Args:  cobra.ExactArgs(1),
	Run:   evalCommand,
}

func init() {
	evalCmd.Flags().Int64Var(&evalSeed, "seed", 1, "PRNG seed for any random() opcode in the expression")
}

func evalCommand(cmd *cobra.Command, args []string) {
	text := args[0]

	graph := model.NewGraph()
	fn := graph.AddFunction(&model.Function{Name: "eval"})
	aspect := &model.Aspect{Name: "result", Owner: fn, Text: text}
	graph.AddAspect(aspect)

	eng := engine.New(graph, nil, 1, 0, evalSeed)
	eng.Register(aspect, nil)
	eng.ResetAll()

	expr, _ := eng.Expression(aspect.ID)
	value := expr.Result(eng, 1)

	if issue := expr.CompileIssue(); issue != "" {
		log.Fatalf("framexpr: compile error: %s", issue)
	}
	fmt.Println(values.Format(value))
}
