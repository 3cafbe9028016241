// Command agentrc exposes the engine's one CLI surface: check-table and
// check-model utilities a caller can shell out to, e.g. from a Run
// command FeatureTask's test_step, to confirm a migration landed or a
// model class exists. The engine itself is a library driven by a host UI;
// everything else lives in pkg/engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Exit codes callers can branch on.
const (
	exitFound      = 0
	exitNotFound   = 1
	exitWrongUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitWrongUsage
	}

	switch args[0] {
	case "check-table":
		if len(args) != 2 {
			usage()
			return exitWrongUsage
		}
		return checkTable(args[1])
	case "check-model":
		if len(args) != 3 {
			usage()
			return exitWrongUsage
		}
		return checkModel(args[1], args[2])
	default:
		usage()
		return exitWrongUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: agentrc check-table <table_name>")
	fmt.Fprintln(os.Stderr, "       agentrc check-model <app_label> <ModelName>")
}

// checkTable shells out to the target project's own Django environment to
// introspect whether table exists. A Go binary cannot introspect a Django
// ORM directly, so this wraps the target's interpreter rather than
// reimplementing the introspection.
func checkTable(table string) int {
	script := fmt.Sprintf(pythonCheckTableScript, table)
	if runPythonCheck(script) {
		fmt.Printf("Success: table %q found.\n", table)
		return exitFound
	}
	fmt.Fprintf(os.Stderr, "Failure: table %q not found or error occurred.\n", table)
	return exitNotFound
}

// checkModel is the model-existence counterpart, grounded on
// check_model.py.
func checkModel(appLabel, modelName string) int {
	script := fmt.Sprintf(pythonCheckModelScript, appLabel, modelName)
	if runPythonCheck(script) {
		fmt.Printf("Success: model %q found in app %q.\n", modelName, appLabel)
		return exitFound
	}
	fmt.Fprintf(os.Stderr, "Failure: model %q not found in app %q or error occurred.\n", modelName, appLabel)
	return exitNotFound
}

const pythonCheckTableScript = `
import os, sys, django
if not os.environ.get("DJANGO_SETTINGS_MODULE"):
    sys.exit(1)
try:
    django.setup()
    from django.db import connection
    sys.exit(0 if %q in connection.introspection.table_names() else 1)
except Exception:
    sys.exit(1)
`

const pythonCheckModelScript = `
import importlib, inspect, os, sys, django
if not os.environ.get("DJANGO_SETTINGS_MODULE"):
    sys.exit(1)
try:
    django.setup()
    from django.db import models
    mod = importlib.import_module(%q + ".models")
    for name, obj in inspect.getmembers(mod):
        if inspect.isclass(obj) and name == %q and issubclass(obj, models.Model):
            sys.exit(0)
    sys.exit(1)
except Exception:
    sys.exit(1)
`

// runPythonCheck runs script under the project's python3 interpreter,
// reporting found=true only on a clean zero exit.
func runPythonCheck(script string) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := exec.CommandContext(ctx, "python3", "-c", script)
	return cmd.Run() == nil
}
