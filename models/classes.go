package models

import (
	"github.com/pkg/errors"
)

// Family identifies a dataset naming convention used for placeholder labels.
type Family string

const (
	// FamilyCOCO is the 80 COCO classes with "__background__" at index 0.
	FamilyCOCO Family = "coco"
	// FamilyYOLO is the 80 COCO classes indexed from zero, without background.
	FamilyYOLO Family = "yolo"
	// FamilyTF mirrors TensorFlow's default COCO labelmap, identical to FamilyCOCO.
	FamilyTF Family = "tf"
	// FamilyVOC is the 20 Pascal VOC classes with "__background__" at index 0.
	FamilyVOC Family = "voc"
)

// Background is the name of the implicit background class.
const Background = "__background__"

// COCONames is the 80 COCO classes in YOLO (zero-based) order.
var COCONames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// VOCNames is the 20 Pascal VOC classes.
var VOCNames = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa", "train",
	"tvmonitor",
}

// PlaceholderNames returns the built-in label list for a family. The empty family
// selects FamilyYOLO, which matches the output of Ultralytics exports.
//
// Arguments:
//   - family: The naming convention.
//
// Returns:
//   - []string: A fresh copy of the names, indexed by class id.
//   - error: If the family is unknown.
func PlaceholderNames(family Family) ([]string, error) {
	switch family {
	case FamilyYOLO, "":
		return append([]string(nil), COCONames...), nil
	case FamilyCOCO, FamilyTF:
		return append([]string{Background}, COCONames...), nil
	case FamilyVOC:
		return append([]string{Background}, VOCNames...), nil
	}
	return nil, errors.Errorf("unknown label family %q", family)
}
