// Package calibrate estimates the planar projective transform between
// an aligned left/right frame pair.
//
// The pipeline detects corners in the expected overlap band of each
// frame, matches them by normalized patch similarity with mutual-best
// and ratio filtering, fits a homography with RANSAC, and refines the
// winner on its full inlier set. Quality gates on match count, inlier
// count, and inlier ratio reject untrustworthy fits; the canvas and
// blend geometry for stitching are derived from the accepted
// transform.
package calibrate
