package p

// Work around module issues. The analyzer just looks for `workflow.Context` currently
import (
	workflow "context"
	"fmt"
	"math/rand"
	"time"
)

func wf(ctx workflow.Context) error {
	return nil
}

func wfWithResult(ctx workflow.Context, input int) (string, error) {
	return "", nil
}

func wfWithTooManyInputs(ctx workflow.Context, a, b int) error { // want "workflow \"wfWithTooManyInputs\" accepts more than one input"
	return nil
}

func wfWithTooManyResults(ctx workflow.Context) (int, string, error) { // want "workflow \"wfWithTooManyResults\" returns more than two values"
	return 42, "", nil
}

func wfWrongOrder(ctx workflow.Context) (error, string) { // want "workflow \"wfWrongOrder\" doesn't return `error` as last return value"
	return nil, ""
}

func wfWithoutReturn(ctx workflow.Context) { // want "workflow \"wfWithoutReturn\" doesn't return anything. needs to return at least `error`"
}

func wfIteratingOverMap(ctx workflow.Context) error {
	x := make(map[string]string)

	fmt.Println("log")

	for _, v := range x { // want "iterating over a map is not deterministic and not allowed in workflows"
		if v == "a" {
			return nil
		}
	}

	return nil
}

func wfIteratingOverSlice(ctx workflow.Context) error {
	for _, v := range []string{"a", "b"} {
		fmt.Println(v)
	}

	return nil
}

func wfUsingGoRoutine(ctx workflow.Context) error {
	go func() { // want "goroutines are not allowed in workflows, schedule activities or sub-workflows instead"
		fmt.Println("hello")
	}()

	return nil
}

func wfUsingSelect(ctx workflow.Context) error {
	c := make(chan int)

	select { // want "select is not deterministic and not allowed in workflows"
	case <-c:
	default:
	}

	return nil
}

func wfUsingTime(ctx workflow.Context) error {
	start := time.Now() // want "time.Now is not deterministic, use workflow.Now in workflows"

	if true {
		time.Sleep(time.Second) // want "time.Sleep is not deterministic, use workflow.Sleep in workflows"
	}

	fmt.Println(start.Add(time.Minute))

	return nil
}

func wfUsingRandom(ctx workflow.Context) (int, error) {
	return rand.Intn(10), nil // want "random numbers are not deterministic, generate them in an activity"
}

func notAWorkflow(s fmt.Stringer) error {
	go func() {}()

	return nil
}

func activity(s fmt.Stringer) (time.Time, error) {
	return time.Now(), nil
}
