// Package process provides child process management for the REPL bridge.
//
// A Process wraps an exec.Cmd whose stdin is piped and whose stdout and
// stderr are joined into one Output stream, so the reader sees output in
// the order the child emitted it.
//
// # Supervisor
//
// The Supervisor starts and tracks processes and can cap how many run at
// once. The bridge uses a limit of one to guarantee a single live session:
//
//	sup := process.NewSupervisor(process.WithMaxProcesses(1))
//	defer sup.Shutdown(2 * time.Second)
//
//	proc, err := sup.Start("python", exec.Command("python", "-i"))
//	if err != nil {
//	    return err
//	}
//	fmt.Fprintln(proc.Stdin, "print(1)")
//
// # Thread Safety
//
// Both Supervisor and Process are safe for concurrent use.
package process
