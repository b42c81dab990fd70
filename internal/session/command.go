package session

// Arg describes one positional argument of a command.
type Arg struct {
	Name        string
	Optional    bool
	Description string
}

// Command is one entry of the static command table: help text, the
// handler, and the ordered argument spec. The table is data, not a type
// hierarchy; dispatch is a map lookup and help renders the slice in
// registration order.
type Command struct {
	Name string
	Help string
	Args []Arg
	Run  func(e *Engine, args []string) (string, error)
}

// requiredArgs counts the arguments marked non-optional.
func (c *Command) requiredArgs() int {
	n := 0
	for _, a := range c.Args {
		if !a.Optional {
			n++
		}
	}
	return n
}

// commandTable builds the table once per engine. Registration order is the
// order help displays.
func commandTable() []*Command {
	return []*Command{
		{
			Name: "exit",
			Help: "Exit the program",
			Run:  (*Engine).exit,
		},
		{
			Name: "help",
			Help: "Shows this message",
			Run:  (*Engine).help,
		},
		{
			Name: "register",
			Help: "Register a new user",
			Args: []Arg{
				{Name: "username", Description: "The username for the new user"},
				{Name: "password", Description: "The password for the new user"},
			},
			Run: (*Engine).register,
		},
		{
			Name: "login",
			Help: "Login to your account",
			Args: []Arg{
				{Name: "username"},
				{Name: "password"},
			},
			Run: (*Engine).login,
		},
		{
			Name: "list",
			Help: "List all files in the current directory",
			Run:  (*Engine).list,
		},
		{
			Name: "change_folder",
			Help: "Change the current working directory",
			Args: []Arg{
				{Name: "folder_name", Description: "The name of the folder you want to change to"},
			},
			Run: (*Engine).changeFolder,
		},
		{
			Name: "read_file",
			Help: "Reads 100 characters of the file from the last read position, starting from 0 for the first read of a new file",
			Args: []Arg{
				{Name: "file_name", Optional: true, Description: "The name of the file to read. If not provided the currently open file's read offset will be reset"},
			},
			Run: (*Engine).readFile,
		},
		{
			Name: "write_file",
			Help: "Write content to a given file. The file will be created if it does not already exist",
			Args: []Arg{
				{Name: "file_name", Description: "The name of the file to write to"},
				{Name: "input", Optional: true, Description: "The content to write to the file. If not provided, the existing file will be cleared"},
			},
			Run: (*Engine).writeFile,
		},
		{
			Name: "create_folder",
			Help: "Create a new folder in the current directory",
			Args: []Arg{
				{Name: "folder_name", Description: "The name of the new folder to create"},
			},
			Run: (*Engine).createFolder,
		},
	}
}
