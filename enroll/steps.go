// Package enroll implements the guided capture wizard and the enrollment
// submission client.
package enroll

// RequiredPhotos is the fixed number of correctly ordered reference
// photographs an enrollment needs.
const RequiredPhotos = 3

// Step is one required pose in the guided capture sequence. Step identity is
// purely positional; there is no skipping or reordering.
type Step struct {
	Index       int
	Pose        string
	Instruction string
}

// CaptureSteps returns the canonical ordered pose list.
func CaptureSteps() []Step {
	return []Step{
		{Index: 0, Pose: "forward", Instruction: "Look straight at the camera"},
		{Index: 1, Pose: "left", Instruction: "Turn your head slightly to the left"},
		{Index: 2, Pose: "right", Instruction: "Turn your head slightly to the right"},
	}
}
